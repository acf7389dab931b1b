package console

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"go-access-console/internal/model"
	"go-access-console/internal/reconcile"
)

// cmdAccess opens the two-pane access editor for one package.
func (c *Console) cmdAccess(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: access <package-id>")
	}

	id, err := strconv.Atoi(args[0])
	if err != nil {
		return errors.New("usage: access <package-id>")
	}

	packages, err := c.directory.Packages(ctx)
	if err != nil {
		return err
	}

	var pkg *model.Package
	for i := range packages {
		if packages[i].ID == id {
			pkg = &packages[i]
			break
		}
	}
	if pkg == nil {
		return model.ErrPackageNotFound
	}

	c.printf("loading access editor for %q...\n", pkg.Name)
	session, err := reconcile.Start(ctx, c.client, *pkg)
	if err != nil {
		return err
	}

	c.printf("editing access for %q — 'help' for editor commands, 'done' to leave\n", pkg.Name)
	c.printPanes(session, "")

	for {
		c.printf("access:%s> ", pkg.Name)
		line, ok := c.readLine(ctx)
		if !ok {
			return nil
		}

		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}

		switch fields[0] {
		case "help":
			c.printAccessHelp()
		case "list":
			query := ""
			if len(fields) > 1 {
				query = fields[1]
			}
			c.printPanes(session, query)
		case "sel":
			if len(fields) < 2 {
				c.printf("usage: sel <user-id> [user-id ...]\n")
				continue
			}
			for _, raw := range fields[1:] {
				userID, err := strconv.Atoi(raw)
				if err != nil {
					c.printf("not a user id: %q\n", raw)
					continue
				}
				session.ToggleSelect(userID)
			}
			c.printPanes(session, "")
		case "grant":
			session.MoveSelectedToGranted()
			c.printPanes(session, "")
		case "revoke":
			session.MoveSelectedToCandidates()
			c.printPanes(session, "")
		case "dirty":
			c.printf("unsaved changes: %v\n", session.IsDirty())
		case "save":
			c.printf("saving...\n")
			if err := session.Commit(ctx); err != nil {
				c.printError(err)
				continue
			}
			c.printf("access saved\n")
		case "discard":
			session.Discard()
			c.printf("changes discarded\n")
			c.printPanes(session, "")
		case "done":
			if session.IsDirty() {
				c.printf("unsaved changes — 'save' or 'discard' first, or 'done!' to abandon them\n")
				continue
			}
			return nil
		case "done!":
			return nil
		default:
			c.printf("unknown editor command %q\n", fields[0])
		}
	}
}

func (c *Console) printAccessHelp() {
	c.printf(`  list [filter]   show both panes, optionally filtered by username
  sel <id> ...    toggle selection marks
  grant           move selected candidates into the access list
  revoke          move selected granted users out
  dirty           report unsaved changes
  save            commit the full membership
  discard         restore the last saved membership
  done            leave the editor (refuses with unsaved changes)
`)
}

func (c *Console) printPanes(session *reconcile.Reconciler, query string) {
	tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PANE\tSEL\tID\tUSERNAME\tROLE")
	for _, user := range session.GrantedMatching(query) {
		fmt.Fprintf(tw, "granted\t%s\t%d\t%s\t%s\n", selMark(session, user.ID), user.ID, user.Username, user.Role)
	}
	for _, user := range session.CandidatesMatching(query) {
		fmt.Fprintf(tw, "candidate\t%s\t%d\t%s\t%s\n", selMark(session, user.ID), user.ID, user.Username, user.Role)
	}
	_ = tw.Flush()

	if session.IsDirty() {
		c.printf("(unsaved changes)\n")
	}
}

func selMark(session *reconcile.Reconciler, userID int) string {
	if session.Selected(userID) {
		return "*"
	}

	return ""
}
