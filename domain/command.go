package domain

// Command is the closed union of client requests the coordinator dispatches
// on. Each variant carries its typed payload; adding a variant means
// extending the coordinator's type switch.
type Command interface {
	isCommand()
}

type CreateCommand struct {
	Room     string
	Password string
}

type JoinCommand struct {
	Room     string
	Password string
}

type LeaveCommand struct{}

type TextCommand struct {
	Room string
	Msg  string
	ID   string
}

type WhisperCommand struct {
	Target string
	Msg    string
}

func (CreateCommand) isCommand()  {}
func (JoinCommand) isCommand()    {}
func (LeaveCommand) isCommand()   {}
func (TextCommand) isCommand()    {}
func (WhisperCommand) isCommand() {}
