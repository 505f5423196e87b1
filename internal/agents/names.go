package agents

import "math/rand"

// Name returns a cosmetic name derived from the identity number, so the same
// pedestrian always has the same name.
func Name(ssn SSN) string {
	rng := rand.New(rand.NewSource(int64(ssn)*7919 + 123))
	firsts := maleNames
	if rng.Intn(2) == 1 {
		firsts = femaleNames
	}
	first := firsts[rng.Intn(len(firsts))]
	last := lastNames[rng.Intn(len(lastNames))]
	return first + " " + last
}

// Name pools for procedural generation.
var maleNames = []string{
	"Aldric", "Bram", "Cedric", "Doran", "Erik", "Finn", "Gareth",
	"Halvard", "Ivan", "Jasper", "Kael", "Leif", "Magnus", "Nils",
	"Oswin", "Per", "Quinn", "Rowan", "Stellan", "Theron", "Ulric",
}

var femaleNames = []string{
	"Astrid", "Brenna", "Calla", "Daria", "Elara", "Freya", "Greta",
	"Helene", "Iris", "Juno", "Kira", "Lena", "Mira", "Nessa",
	"Olwen", "Petra", "Runa", "Senna", "Thea", "Una", "Vera",
}

var lastNames = []string{
	"Voss", "Thornwood", "Blackwood", "Ashford", "Dunmore", "Greenvale",
	"Millward", "Copperfield", "Silverdale", "Deepwell", "Brightwater",
	"Marshwood", "Riverstone", "Holloway", "Farrow", "Wyatt", "Thatcher",
	"Briar", "Caldwell", "Harper", "Mercer", "Ward", "Cross",
}
