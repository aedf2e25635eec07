package boarddto

// IntentType names an action requested by a UI collaborator.
type IntentType string

const (
	IntentMove       IntentType = "move"
	IntentResign     IntentType = "resign"
	IntentDraw       IntentType = "draw"
	IntentSeek       IntentType = "seek"
	IntentCancelSeek IntentType = "cancel_seek"
)

// Intent is sent by the UI. Move is a 4-5 character move token for IntentMove;
// Control names a time control preset for IntentSeek.
type Intent struct {
	Type    IntentType `json:"type"`
	Move    string     `json:"move,omitempty"`
	Control string     `json:"control,omitempty"`
}

// ActionError is the transient notice shown when an outbound request fails.
type ActionError struct {
	Action    string `json:"action"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

func (e ActionError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Action != "" {
		return e.Action + " failed"
	}
	return "board action failed"
}

// Envelope is what the server pushes over the UI socket: either a view or an
// error notice for an intent the client sent.
type Envelope struct {
	Type  string       `json:"type"`
	View  *GameView    `json:"view,omitempty"`
	Error *ActionError `json:"error,omitempty"`
}

// CandidateSet answers a highlight request for one square.
type CandidateSet struct {
	Square    string   `json:"square"`
	Targets   []string `json:"targets"`
	Promotion []string `json:"promotion,omitempty"`
}

type TimeControl struct {
	Name      string `json:"name"`
	Minutes   int    `json:"time"`
	Increment int    `json:"increment"`
}

// ClientSettings are the display preferences a UI needs before any game exists:
// the seek buttons and whether a move must be confirmed before it is sent.
type ClientSettings struct {
	TimeControls     []TimeControl `json:"time_controls"`
	ConfirmMoves     bool          `json:"confirm_moves"`
	ShowCoordinates  bool          `json:"show_coordinates"`
	LowTimeThreshold int           `json:"low_time_threshold_sec"`
}
