package access

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/enchantedlib/lending-service/internal/model"
)

// Permission is one grantable action.
type Permission string

const (
	ViewBook        Permission = "view_book"
	BorrowBook      Permission = "borrow_book"
	ModifyBook      Permission = "modify_book"
	DeleteBook      Permission = "delete_book"
	ViewUser        Permission = "view_user"
	ModifyUser      Permission = "modify_user"
	DeleteUser      Permission = "delete_user"
	ViewSection     Permission = "view_section"
	ModifySection   Permission = "modify_section"
	ViewLending     Permission = "view_lending"
	ModifyLending   Permission = "modify_lending"
	GenerateReports Permission = "generate_reports"
	ManageSystem    Permission = "manage_system"
)

// Level grades how restricted a section is.
type Level int

const (
	LevelPublic Level = iota
	LevelRestricted
	LevelHighlyRestricted
)

var rolePermissions = map[model.UserRole]map[Permission]struct{}{
	model.RoleLibrarian: {
		ViewBook: {}, BorrowBook: {}, ModifyBook: {}, DeleteBook: {},
		ViewUser: {}, ModifyUser: {}, DeleteUser: {},
		ViewSection: {}, ModifySection: {},
		ViewLending: {}, ModifyLending: {},
		GenerateReports: {}, ManageSystem: {},
	},
	model.RoleScholar: {
		ViewBook: {}, BorrowBook: {}, ViewSection: {}, ViewLending: {},
	},
	model.RoleGuest: {
		ViewBook: {}, BorrowBook: {}, ViewSection: {},
	},
}

// LogEntry records one access decision.
type LogEntry struct {
	Timestamp    time.Time `json:"timestamp"`
	UserID       string    `json:"userId"`
	ResourceType string    `json:"resourceType"`
	ResourceID   string    `json:"resourceId"`
	Action       string    `json:"action"`
	Success      bool      `json:"success"`
}

// LogFilter narrows an access-log query. Zero-value fields are ignored.
type LogFilter struct {
	UserID       string
	ResourceType string
	ResourceID   string
	Action       string
	Success      *bool
	Start        time.Time
	End          time.Time
}

// Control answers permission questions and keeps the audit trail.
type Control struct {
	mu            sync.RWMutex
	sectionLevels map[string]Level
	logs          []LogEntry
	log           *zap.Logger
	now           func() time.Time
}

func NewControl(log *zap.Logger) *Control {
	return &Control{
		sectionLevels: make(map[string]Level),
		log:           log.Named("access"),
		now:           time.Now,
	}
}

func (c *Control) SetSectionLevel(sectionID string, level Level) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sectionLevels[sectionID] = level
}

// SectionLevel defaults to public for unknown sections.
func (c *Control) SectionLevel(sectionID string) Level {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sectionLevels[sectionID]
}

// HasPermission checks role permissions with admin-level overrides: a
// level-1 librarian loses the destructive permissions, a level-3 librarian
// gets everything.
func (c *Control) HasPermission(user *model.User, p Permission) bool {
	if user.Role == model.RoleLibrarian && user.Librarian != nil {
		if user.Librarian.AdminLevel == 1 {
			switch p {
			case DeleteBook, DeleteUser, ManageSystem:
				return false
			}
		}
		if user.Librarian.AdminLevel == 3 {
			return true
		}
	}
	_, ok := rolePermissions[user.Role][p]
	return ok
}

// CanAccessSection grades the user against the section's access level.
func (c *Control) CanAccessSection(user *model.User, sectionID string) bool {
	level := c.SectionLevel(sectionID)

	switch user.Role {
	case model.RoleLibrarian:
		adminLevel := 0
		if user.Librarian != nil {
			adminLevel = user.Librarian.AdminLevel
		}
		switch level {
		case LevelHighlyRestricted:
			return adminLevel == 3
		case LevelRestricted:
			return adminLevel >= 2
		default:
			return true
		}
	case model.RoleScholar:
		switch level {
		case LevelHighlyRestricted:
			return false
		case LevelRestricted:
			if user.Scholar == nil {
				return false
			}
			return user.Scholar.AcademicLevel == model.LevelProfessor ||
				user.Scholar.AcademicLevel == model.LevelDistinguished
		default:
			return true
		}
	default:
		return level == LevelPublic
	}
}

// CanBorrowBook layers the full policy: the borrow permission, the book's
// lending period, the section gate and the variant restrictions. Ancient
// scripts never pass here; they can only leave the shelf for the reading
// room.
func (c *Control) CanBorrowBook(user *model.User, book *model.Book, sectionID string) bool {
	if !c.HasPermission(user, BorrowBook) {
		return false
	}
	if book.LendingPeriodDays() == 0 {
		return false
	}
	if sectionID != "" && !c.CanAccessSection(user, sectionID) {
		return false
	}

	switch book.Kind {
	case model.KindAncient:
		return false
	case model.KindRare:
		switch user.Role {
		case model.RoleGuest:
			return false
		case model.RoleScholar:
			if user.Scholar == nil {
				return false
			}
			switch user.Scholar.AcademicLevel {
			case model.LevelGraduate, model.LevelProfessor, model.LevelDistinguished:
				return true
			default:
				return false
			}
		}
	}
	return true
}

// LogAttempt appends one decision to the audit trail.
func (c *Control) LogAttempt(userID, resourceType, resourceID, action string, success bool) {
	entry := LogEntry{
		Timestamp:    c.now(),
		UserID:       userID,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Action:       action,
		Success:      success,
	}
	c.mu.Lock()
	c.logs = append(c.logs, entry)
	c.mu.Unlock()

	if !success {
		c.log.Warn("access denied",
			zap.String("userId", userID),
			zap.String("resource", resourceType+"/"+resourceID),
			zap.String("action", action))
	}
}

// Logs returns the audit entries matching the filter, oldest first.
func (c *Control) Logs(f LogFilter) []LogEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []LogEntry
	for _, e := range c.logs {
		if f.UserID != "" && e.UserID != f.UserID {
			continue
		}
		if f.ResourceType != "" && e.ResourceType != f.ResourceType {
			continue
		}
		if f.ResourceID != "" && e.ResourceID != f.ResourceID {
			continue
		}
		if f.Action != "" && e.Action != f.Action {
			continue
		}
		if f.Success != nil && e.Success != *f.Success {
			continue
		}
		if !f.Start.IsZero() && e.Timestamp.Before(f.Start) {
			continue
		}
		if !f.End.IsZero() && e.Timestamp.After(f.End) {
			continue
		}
		out = append(out, e)
	}
	return out
}
