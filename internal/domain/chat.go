package domain

// ChatTurn is a single chat demo request. No history is kept server-side;
// the caller owns the transcript.
type ChatTurn struct {
	Message string
	Context string
}
