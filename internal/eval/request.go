package eval

// Request is one synthetic RPC call to evaluate: who is calling which
// service, with what argument, toward which destination. NoDestination
// marks a call that named no destination at all, which is what @default
// rules match.
type Request struct {
	Service       string
	Argument      string
	Source        string
	Destination   string
	NoDestination bool
}

// QubeInfo resolves qube metadata for tag, type and admin-vm matching.
// Classification of qubes is an external collaborator's job; the evaluator
// only asks predicates.
type QubeInfo interface {
	HasTag(qube, tag string) bool
	TypeOf(qube string) string
	IsAdminVM(qube string) bool
}

// StaticQubeInfo is a QubeInfo backed by fixed maps, convenient for tests
// and for the CLI where metadata arrives from flags.
type StaticQubeInfo struct {
	Tags    map[string][]string
	Types   map[string]string
	AdminVM string
}

func (s StaticQubeInfo) HasTag(qube, tag string) bool {
	for _, t := range s.Tags[qube] {
		if t == tag {
			return true
		}
	}
	return false
}

func (s StaticQubeInfo) TypeOf(qube string) string {
	return s.Types[qube]
}

func (s StaticQubeInfo) IsAdminVM(qube string) bool {
	if s.AdminVM == "" {
		return qube == "dom0"
	}
	return qube == s.AdminVM
}
