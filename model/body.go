package model

import (
	"fmt"
	"sort"
	"strings"
)

// Body is a central body that orbits are expressed around.
type Body struct {
	Name     string
	RadiusKm float64
	Mu       float64 // km^3/s^2
}

// Bundled central bodies. Earth is the default for TLE data.
var (
	Earth = Body{Name: "earth", RadiusKm: 6378.1363, Mu: 398600.4418}
	Moon  = Body{Name: "moon", RadiusKm: 1737.4, Mu: 4902.800066}
	Mars  = Body{Name: "mars", RadiusKm: 3396.19, Mu: 42828.37}
	Sun   = Body{Name: "sun", RadiusKm: 695700, Mu: 1.32712440018e11}
)

var bodies = map[string]Body{
	Earth.Name: Earth,
	Moon.Name:  Moon,
	Mars.Name:  Mars,
	Sun.Name:   Sun,
}

// LookupBody finds a bundled body by case-insensitive name.
func LookupBody(name string) (Body, error) {
	b, ok := bodies[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Body{}, fmt.Errorf("unknown central body %q (known: %s)", name, strings.Join(BodyNames(), ", "))
	}
	return b, nil
}

// BodyNames lists the bundled body names in sorted order.
func BodyNames() []string {
	names := make([]string, 0, len(bodies))
	for n := range bodies {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
