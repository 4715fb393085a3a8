package catalog

import "time"

// SourceKind identifies which provider implementation a source configures.
type SourceKind string

const (
	KindOutlook   SourceKind = "outlook"   // email via Microsoft Graph
	KindSnowflake SourceKind = "snowflake" // analytics via Cortex / SQL API v2
	KindBox       SourceKind = "box"       // file storage
)

func (k SourceKind) Valid() bool {
	switch k {
	case KindOutlook, KindSnowflake, KindBox:
		return true
	}
	return false
}

// User owns sources and servers. Passwords are stored hashed; the catalog
// never sees plaintext.
type User struct {
	ID             string
	Email          string
	HashedPassword string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Source is one configured provider credential bundle. Metadata keys are
// kind-specific (see validate.go); values are opaque to the catalog.
type Source struct {
	ID        string
	Kind      SourceKind
	Metadata  map[string]string
	UserID    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Server assigns a tenant endpoint to an ordered set of sources. The endpoint
// comes from a finite pool at creation time and never changes afterwards.
// Soft-deleted servers keep their endpoint claimed until explicitly restored
// or purged.
type Server struct {
	ID        string
	Name      string
	Endpoint  string
	SourceIDs []string
	UserID    string
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt *time.Time
}

func (s Server) Deleted() bool { return s.DeletedAt != nil }
