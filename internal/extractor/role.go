package extractor

import (
	"github.com/PuerkitoBio/goquery"

	"chatarchiver/internal/domain"
)

const (
	userTurnSelector  = `[data-is-user="true"]`
	userClass         = "user"
	userLabelSelector = `[aria-label*="user"]`
)

// ElementDescriptor is the set of structural facts role classification looks at.
type ElementDescriptor struct {
	HasAncestorMarkedUser     bool // the element or an ancestor carries data-is-user="true"
	HasUserClass              bool // class list contains the token "user"
	HasUserLabelledDescendant bool // a descendant's aria-label contains "user"
}

// ClassifyRole returns RoleUser when any user marker is present, RoleAssistant otherwise.
// Unknown markup always lands on RoleAssistant.
func ClassifyRole(d ElementDescriptor) domain.Role {
	if d.HasAncestorMarkedUser || d.HasUserClass || d.HasUserLabelledDescendant {
		return domain.RoleUser
	}
	return domain.RoleAssistant
}

// Describe reads the role markers of a single element.
func Describe(s *goquery.Selection) ElementDescriptor {
	return ElementDescriptor{
		HasAncestorMarkedUser:     s.Closest(userTurnSelector).Length() > 0,
		HasUserClass:              s.HasClass(userClass),
		HasUserLabelledDescendant: s.Find(userLabelSelector).Length() > 0,
	}
}
