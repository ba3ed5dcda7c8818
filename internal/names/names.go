// Package names holds the fixed word list used by the Identifier to assign
// a turtle its name on first connection (spec.md §4.5).
package names

// FallbackName is used when a turtle's numeric id falls outside the list.
const FallbackName = "Turtle"

// List is the fixed, ordered word list. Names are assigned by index, so
// this order must never change once turtles have been named from it.
var List = []string{
	"Aaron",
	"Bailey",
	"Carter",
	"Dexter",
	"Edgar",
	"Felix",
	"Gordon",
	"Harvey",
	"Ingrid",
	"Jasper",
	"Kara",
	"Lloyd",
	"Marcus",
	"Nadia",
	"Oscar",
	"Percy",
	"Quincy",
	"Reggie",
	"Sandra",
	"Tobias",
	"Ursula",
	"Victor",
	"Wendy",
	"Xander",
	"Yvonne",
	"Zane",
	"Abigail",
	"Bruno",
	"Cora",
	"Duncan",
	"Elena",
	"Franklin",
	"Greta",
	"Hector",
	"Iris",
	"Jasmine",
	"Kellan",
	"Lorraine",
	"Milo",
	"Nolan",
	"Odette",
	"Priscilla",
	"Daniel",
	"Quinton",
	"Rosalind",
	"Silas",
	"Tamsin",
	"Ulric",
	"Vera",
	"Walter",
	"Ximena",
	"Yusuf",
	"Zara",
	"Alaric",
	"Benedict",
	"Clementine",
	"Dashiell",
	"Esperanza",
	"Fitzgerald",
	"Gideon",
	"Henrietta",
	"Inigo",
	"Juniper",
	"Killian",
	"Lavinia",
	"Montague",
	"Nimbus",
	"Ophelia",
	"Pendleton",
	"Quillon",
	"Rutherford",
	"Seraphina",
	"Thaddeus",
	"Ulysses",
	"Vesper",
	"Winslow",
	"Xiomara",
	"Yardley",
	"Zephyrine",
	"Abernathy",
	"Barnaby",
	"Cassius",
	"Delphine",
	"Ezekiel",
	"Fenwick",
	"Griselda",
	"Hawthorne",
	"Ignatius",
	"Josephine",
	"Kenworthy",
	"Leopold",
	"Magnolia",
	"Nathaniel",
	"Octavia",
	"Prudence",
	"Quentin",
	"Ramsbottom",
	"Sylvester",
	"Throckmorton",
	"Umberto",
}

// ForID returns the assigned name for a numeric turtle id, falling back to
// FallbackName when id is out of range.
func ForID(id uint64) string {
	if id >= uint64(len(List)) {
		return FallbackName
	}
	return List[id]
}
