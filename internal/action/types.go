// Package action models the closed agent-action vocabulary and translates
// a structured action into concrete operations against a page, the way
// internal/executor/executor.go in the teacher repo translates a recorded
// TestStep into chromedp calls — generalized from the teacher's open string
// switch to a closed, ten-member enum (eight operational kinds plus the two
// terminal kinds, done and fail).
package action

// Kind is the closed set of agent action kinds. Unlike the teacher's
// TestStep.Type (an open string matched in a default-erroring switch), Kind
// is an enum: the action vocabulary in this system never grows without a
// code change.
type Kind string

const (
	KindClick    Kind = "click"
	KindType     Kind = "type"
	KindScroll   Kind = "scroll"
	KindNavigate Kind = "navigate"
	KindKeyboard Kind = "keyboard"
	KindWait     Kind = "wait"
	KindHover    Kind = "hover"
	KindSelect   Kind = "select"
	KindDone     Kind = "done"
	KindFail     Kind = "fail"
)

// Terminal reports whether k ends the perception loop.
func (k Kind) Terminal() bool {
	return k == KindDone || k == KindFail
}

// Action is a tagged value: a Kind plus its kind-specific argument map, the
// shape the Vision Client's tool-use response is decoded into.
type Action struct {
	Kind  Kind                   `json:"kind"`
	Input map[string]interface{} `json:"input"`
}

// Result is the outcome of dispatching an Action to the Executor. Every
// executor operation is wrapped so that thrown errors become a Result
// rather than propagating — see spec §4.4.
type Result struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// MouseButton mirrors the button argument accepted by click/hover actions.
type MouseButton string

const (
	ButtonLeft   MouseButton = "left"
	ButtonRight  MouseButton = "right"
	ButtonMiddle MouseButton = "middle"
)
