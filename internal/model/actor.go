package model

import "fmt"

// Actor identifies the human who performed or requested an action.
type Actor struct {
	Name       string `yaml:"name" json:"name" validate:"required"`
	Role       string `yaml:"role" json:"role" validate:"required"`
	Identifier string `yaml:"identifier,omitempty" json:"identifier,omitempty"`
}

func (a Actor) String() string {
	if a.Role == "" {
		return a.Name
	}
	return fmt.Sprintf("%s (%s)", a.Name, a.Role)
}
