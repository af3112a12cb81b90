package content

import "time"

// Type identifies an indexable content kind.
type Type string

// Supported indexable types.
const (
	TypePost Type = "post"
	TypeUser Type = "user"
)

// IsValid checks if the type is one of the supported indexables.
func (t Type) IsValid() bool {
	return t == TypePost || t == TypeUser
}

// Status is the visibility state of a content object.
type Status string

// Content status values.
const (
	StatusPublish Status = "publish"
	StatusDraft   Status = "draft"
	StatusPrivate Status = "private"
	// StatusDeleted marks an object removed from the store after it was enqueued.
	// The mapper reports it as gone; it never reaches the index.
	StatusDeleted Status = "deleted"
)

// Term is a taxonomy assignment (name/slug pair within a taxonomy).
type Term struct {
	Taxonomy string `json:"taxonomy"`
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Slug     string `json:"slug"`
}

// Object is a source record read from the content store.
// It is owned by the store and read-only to the sync pipeline.
type Object struct {
	ID         int64               `json:"id"`
	Type       Type                `json:"type"`
	Title      string              `json:"title"`
	Content    string              `json:"content"`
	Excerpt    string              `json:"excerpt,omitempty"`
	Slug       string              `json:"slug,omitempty"`
	Author     string              `json:"author,omitempty"`
	Status     Status              `json:"status"`
	Terms      []Term              `json:"terms,omitempty"`
	Meta       map[string][]string `json:"meta,omitempty"`
	CreatedAt  time.Time           `json:"created_at"`
	ModifiedAt time.Time           `json:"modified_at"`
}

// Gone reports whether the object vanished from the store between enqueue
// and mapping time.
func (o *Object) Gone() bool {
	return o.ID == 0 || o.Status == StatusDeleted
}
