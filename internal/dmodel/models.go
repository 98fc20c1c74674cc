package dmodel

import "time"

// Model is a stored dFlow model document. Raw is immutable once stored; a
// user may own many models and the most recently updated one is the user's
// current model.
type Model struct {
	ID        string    `json:"id" bson:"_id"`
	Raw       string    `json:"raw" bson:"raw"`
	UserID    string    `json:"userId" bson:"userId"`
	Username  string    `json:"username" bson:"username"`
	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" bson:"updatedAt"`
}

// FileName is the download name of the model.
func (m *Model) FileName() string {
	return "model-" + m.ID + ".dflow"
}
