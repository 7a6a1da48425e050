package domain

import "strings"

// Command is an external program invocation handed to a ProcessSpawner.
type Command struct {
	Name string
	Args []string
	Dir  string
	Env  map[string]string
}

// String renders the command line for logs.
func (c Command) String() string {
	if len(c.Args) == 0 {
		return c.Name
	}
	return c.Name + " " + strings.Join(c.Args, " ")
}
