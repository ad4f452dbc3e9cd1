// Package roles defines the fixed privilege hierarchy used for every
// authorization decision in the bot. The order is a total order and is never
// mutated at runtime; rank comparison is by index position in the hierarchy
// (lower index = higher privilege).
package roles

// Role is a privilege level. The zero value is not a valid role; unknown
// values compare as lowest privilege.
type Role int

const (
	MainDeveloper Role = iota + 1
	SecondaryDeveloper
	Assistant
	Developer
	Owner
	MainCreator
	Creator
	Manager
	Admin
	VIP
	Member
)

// Hierarchy is the fixed rank order, highest privilege first. Index position
// is the basis for comparison; do not reorder.
var Hierarchy = []Role{
	MainDeveloper,
	SecondaryDeveloper,
	Assistant,
	Developer,
	Owner,
	MainCreator,
	Creator,
	Manager,
	Admin,
	VIP,
	Member,
}

var names = map[Role]string{
	MainDeveloper:      "Main Developer",
	SecondaryDeveloper: "Secondary Developer",
	Assistant:          "Assistant",
	Developer:          "Developer",
	Owner:              "Owner",
	MainCreator:        "Main Creator",
	Creator:            "Creator",
	Manager:            "Manager",
	Admin:              "Admin",
	VIP:                "VIP",
	Member:             "Member",
}

// sudo holds the ranks that apply bot-wide regardless of chat. A chat-scoped
// assignment for one of these ranks must be stored globally instead.
var sudo = map[Role]bool{
	MainDeveloper:      true,
	SecondaryDeveloper: true,
	Assistant:          true,
	Developer:          true,
}

// chatAdmin holds the chat-scoped ranks allowed to manage a chat.
var chatAdmin = map[Role]bool{
	Owner:       true,
	MainCreator: true,
	Creator:     true,
	Manager:     true,
	Admin:       true,
}

// rank returns the index of r in the hierarchy, or len(Hierarchy) for
// unknown roles so they compare as lowest privilege.
func rank(r Role) int {
	for i, h := range Hierarchy {
		if h == r {
			return i
		}
	}
	return len(Hierarchy)
}

// Outranks reports whether a is strictly more privileged than b.
func Outranks(a, b Role) bool {
	return rank(a) < rank(b)
}

// OutranksOrEqual reports whether a is at least as privileged as b.
func OutranksOrEqual(a, b Role) bool {
	return rank(a) <= rank(b)
}

// IsSudo reports whether r is a bot-wide (sudo tier) rank.
func IsSudo(r Role) bool {
	return sudo[r]
}

// IsChatAdmin reports whether r can manage a chat. Sudo ranks qualify
// everywhere.
func IsChatAdmin(r Role) bool {
	return chatAdmin[r] || sudo[r]
}

// Name returns the display name for a role. Unknown roles display as Member.
func Name(r Role) string {
	if n, ok := names[r]; ok {
		return n
	}
	return names[Member]
}

// ByName looks up a role by its display name.
func ByName(name string) (Role, bool) {
	for r, n := range names {
		if n == name {
			return r, true
		}
	}
	return Member, false
}

// Valid reports whether r is one of the defined ranks.
func Valid(r Role) bool {
	return rank(r) < len(Hierarchy)
}
