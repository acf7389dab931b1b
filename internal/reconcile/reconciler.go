// Package reconcile implements the two-pane access editing session for a
// package: a granted set, a candidate set, selection, moves, and a single
// atomic commit of the full desired membership.
//
// A Reconciler belongs to one editing session on one goroutine; it is not
// safe for concurrent use.
package reconcile

import (
	"context"
	"sort"
	"strings"

	"go-access-console/internal/model"
)

// Backend is the slice of the api client the reconciler needs.
type Backend interface {
	ExcludedUsers(ctx context.Context, packageID int, excludeLogins []string) ([]model.UserRef, error)
	GrantAccess(ctx context.Context, pkg model.Package) error
}

type Reconciler struct {
	backend     Backend
	packageID   int
	packageName string

	granted    map[int]model.UserRef
	candidates map[int]model.UserRef
	selected   map[int]struct{}

	// Last successfully persisted granted membership, by user id. IsDirty
	// compares against this; Commit replaces it.
	baseline map[int]struct{}
}

// Start opens an editing session for the package. The candidate pane is the
// server-side complement of the current access list; the usernames already
// granted go along as exclude_logins so the complement matches the caller's
// view.
func Start(ctx context.Context, backend Backend, pkg model.Package) (*Reconciler, error) {
	logins := make([]string, 0, len(pkg.UsersWithAccess))
	for _, user := range pkg.UsersWithAccess {
		logins = append(logins, user.Username)
	}

	excluded, err := backend.ExcludedUsers(ctx, pkg.ID, logins)
	if err != nil {
		return nil, err
	}

	r := &Reconciler{
		backend:     backend,
		packageID:   pkg.ID,
		packageName: pkg.Name,
		granted:     make(map[int]model.UserRef, len(pkg.UsersWithAccess)),
		candidates:  make(map[int]model.UserRef, len(excluded)),
		selected:    make(map[int]struct{}),
		baseline:    make(map[int]struct{}, len(pkg.UsersWithAccess)),
	}

	for _, user := range pkg.UsersWithAccess {
		r.granted[user.ID] = user
		r.baseline[user.ID] = struct{}{}
	}
	for _, user := range excluded {
		// A user can only live in one pane; granted wins on overlap.
		if _, ok := r.granted[user.ID]; ok {
			continue
		}
		r.candidates[user.ID] = user
	}

	return r, nil
}

// ToggleSelect flips the selection mark on a user present in either pane.
// Unknown ids are ignored.
func (r *Reconciler) ToggleSelect(userID int) {
	if _, ok := r.granted[userID]; !ok {
		if _, ok := r.candidates[userID]; !ok {
			return
		}
	}

	if _, ok := r.selected[userID]; ok {
		delete(r.selected, userID)
		return
	}
	r.selected[userID] = struct{}{}
}

// ClearSelection drops all selection marks.
func (r *Reconciler) ClearSelection() {
	r.selected = make(map[int]struct{})
}

// MoveSelectedToGranted moves every selected candidate into the granted
// pane. Selected users already granted stay where they are; moved users lose
// their selection mark.
func (r *Reconciler) MoveSelectedToGranted() {
	for id := range r.selected {
		user, ok := r.candidates[id]
		if !ok {
			continue
		}
		delete(r.candidates, id)
		r.granted[id] = user
		delete(r.selected, id)
	}
}

// MoveSelectedToCandidates is the inverse move.
func (r *Reconciler) MoveSelectedToCandidates() {
	for id := range r.selected {
		user, ok := r.granted[id]
		if !ok {
			continue
		}
		delete(r.granted, id)
		r.candidates[id] = user
		delete(r.selected, id)
	}
}

// Granted returns the granted pane ordered by username.
func (r *Reconciler) Granted() []model.UserRef {
	return sortedUsers(r.granted)
}

// Candidates returns the candidate pane ordered by username.
func (r *Reconciler) Candidates() []model.UserRef {
	return sortedUsers(r.candidates)
}

// GrantedMatching filters the granted pane view by a case-insensitive
// username substring. The underlying set is untouched.
func (r *Reconciler) GrantedMatching(query string) []model.UserRef {
	return filterUsers(r.Granted(), query)
}

// CandidatesMatching filters the candidate pane view.
func (r *Reconciler) CandidatesMatching(query string) []model.UserRef {
	return filterUsers(r.Candidates(), query)
}

// Selected reports whether the user currently carries a selection mark.
func (r *Reconciler) Selected(userID int) bool {
	_, ok := r.selected[userID]
	return ok
}

// IsDirty reports whether the granted membership differs from the last
// persisted state. Moving a user out and back in leaves the session clean.
func (r *Reconciler) IsDirty() bool {
	if len(r.granted) != len(r.baseline) {
		return true
	}

	for id := range r.granted {
		if _, ok := r.baseline[id]; !ok {
			return true
		}
	}

	return false
}

// Commit posts the complete desired membership in one request. An empty
// granted pane is a full revocation and is sent like any other state. On
// success the baseline moves to the committed membership; on failure panes,
// selection and baseline all stay as they were so the user can retry or
// discard.
func (r *Reconciler) Commit(ctx context.Context) error {
	desired := model.Package{
		ID:              r.packageID,
		Name:            r.packageName,
		UsersWithAccess: r.Granted(),
	}
	if desired.UsersWithAccess == nil {
		desired.UsersWithAccess = []model.UserRef{}
	}

	if err := r.backend.GrantAccess(ctx, desired); err != nil {
		return err
	}

	r.baseline = make(map[int]struct{}, len(r.granted))
	for id := range r.granted {
		r.baseline[id] = struct{}{}
	}

	return nil
}

// Discard moves every user not in the baseline back to the candidate pane
// and every missing baseline member back to granted, restoring the last
// persisted membership.
func (r *Reconciler) Discard() {
	for id, user := range r.granted {
		if _, ok := r.baseline[id]; !ok {
			delete(r.granted, id)
			r.candidates[id] = user
		}
	}
	for id, user := range r.candidates {
		if _, ok := r.baseline[id]; ok {
			delete(r.candidates, id)
			r.granted[id] = user
		}
	}
	r.ClearSelection()
}

func sortedUsers(set map[int]model.UserRef) []model.UserRef {
	out := make([]model.UserRef, 0, len(set))
	for _, user := range set {
		out = append(out, user)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Username != out[j].Username {
			return out[i].Username < out[j].Username
		}
		return out[i].ID < out[j].ID
	})

	return out
}

func filterUsers(users []model.UserRef, query string) []model.UserRef {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return users
	}

	out := make([]model.UserRef, 0, len(users))
	for _, user := range users {
		if strings.Contains(strings.ToLower(user.Username), query) {
			out = append(out, user)
		}
	}

	return out
}
