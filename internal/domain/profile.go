// Package domain contains core domain types for the EDUCTOME application.
package domain

// Badge names unlocked at discipline-point thresholds.
const (
	BadgeDisciple = "Disciple"
	BadgeMaster   = "Maître de la Discipline"
)

// Point thresholds for badge awards.
const (
	DiscipleThreshold = 100
	MasterThreshold   = 500
)

// Profile represents the single student profile of an installation.
type Profile struct {
	Name             string   `json:"name"`
	GradeClass       string   `json:"gradeClass"`
	Weaknesses       []string `json:"weaknesses"`
	DisciplinePoints int      `json:"disciplinePoints"`
	Mastery          int      `json:"mastery"`
	Badges           []string `json:"badges"`
}

// HasBadge returns true if the profile already holds the named badge.
func (p *Profile) HasBadge(name string) bool {
	for _, b := range p.Badges {
		if b == name {
			return true
		}
	}
	return false
}

// AddPoints increases the discipline points by delta and awards every badge
// whose threshold is now met and not yet held. Thresholds are checked
// independently, so a single accrual crossing both awards both badges.
func (p *Profile) AddPoints(delta int) {
	p.DisciplinePoints += delta
	if p.DisciplinePoints >= DiscipleThreshold && !p.HasBadge(BadgeDisciple) {
		p.Badges = append(p.Badges, BadgeDisciple)
	}
	if p.DisciplinePoints >= MasterThreshold && !p.HasBadge(BadgeMaster) {
		p.Badges = append(p.Badges, BadgeMaster)
	}
}

// Clone returns a deep copy of the profile.
func (p *Profile) Clone() *Profile {
	cp := *p
	cp.Weaknesses = append([]string(nil), p.Weaknesses...)
	cp.Badges = append([]string(nil), p.Badges...)
	return &cp
}
