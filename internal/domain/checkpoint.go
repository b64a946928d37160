package domain

// Checkpoint is a snapshot of the working tree taken before a tool-executing
// turn iteration, so a developer-visibility agent can roll back changes a
// tool call made. Only tracked files are captured; SHA is empty when no
// tracked file differed from HEAD, even if untracked files were present.
type Checkpoint struct {
	TurnNumber int
	SHA        string
	IsClean    bool
}
