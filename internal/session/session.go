package session

// Flash categories.
const (
	FlashSuccess = "success"
	FlashInfo    = "info"
	FlashWarning = "warning"
	FlashDanger  = "danger"
)

// Flash is a one-shot notice shown on the next rendered page.
type Flash struct {
	Category string `json:"category"`
	Message  string `json:"message"`
}

// Data is the persisted part of a session.
type Data struct {
	UserID  int64   `json:"user_id,omitempty"`
	Flashes []Flash `json:"flashes,omitempty"`
}

// Session is the request-scoped view of a stored session. Mutations are kept
// in memory until Manager.Save is called.
type Session struct {
	id         string
	staleID    string
	data       Data
	dirty      bool
	regenerate bool
}

func (s *Session) ID() string { return s.id }

func (s *Session) UserID() int64 { return s.data.UserID }

func (s *Session) IsAuthenticated() bool { return s.data.UserID != 0 }

// Login binds the session to userID and rotates the session id.
func (s *Session) Login(userID int64) {
	s.data.UserID = userID
	s.regenerate = true
	s.dirty = true
}

// Logout drops the identity and rotates the session id. Pending flashes survive.
func (s *Session) Logout() {
	s.data.UserID = 0
	s.regenerate = true
	s.dirty = true
}

func (s *Session) AddFlash(category, message string) {
	s.data.Flashes = append(s.data.Flashes, Flash{Category: category, Message: message})
	s.dirty = true
}

// PopFlashes returns and clears the pending flashes.
func (s *Session) PopFlashes() []Flash {
	flashes := s.data.Flashes
	if len(flashes) == 0 {
		return []Flash{}
	}
	s.data.Flashes = nil
	s.dirty = true
	return flashes
}
