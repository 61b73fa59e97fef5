package commands

// Globals carries flags shared by every command.
type Globals struct {
	Debug   bool
	Version string
}
