package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/zlnvch/wire/apperr"
	"github.com/zlnvch/wire/service"
)

const usage = "usage: wire [adduser <username> <password> | inbox <username> | contacts <username> [prefix] | post <username> <text> | timeline <username>]"

// runCommand handles the operator commands. Without arguments the process
// only runs the event relay until it is stopped.
func runCommand(ctx context.Context, svc *service.Service, args []string, out io.Writer) error {
	switch args[0] {
	case "adduser":
		if len(args) != 3 {
			return errors.New(usage)
		}
		u := svc.NewUser()
		u.Update(map[string]string{
			"username":         args[1],
			"password":         args[2],
			"password_confirm": args[2],
		}, true)
		if err := u.Save(ctx); err != nil {
			if apperr.KindOf(err) == apperr.KindValidation {
				for _, reason := range u.ValidationErrors {
					fmt.Fprintln(out, reason)
				}
			}
			return err
		}
		fmt.Fprintf(out, "created user %s with key %d\n", u.Username, u.Key)
		return nil

	case "inbox":
		if len(args) != 2 {
			return errors.New(usage)
		}
		u, err := svc.LoadUserByUsername(ctx, args[1])
		if err != nil {
			return err
		}
		inbox := svc.NewInbox(u)
		if err := inbox.LoadThreads(ctx); err != nil {
			return err
		}
		for _, t := range inbox.Threads {
			lock := ""
			if t.Encrypted {
				lock = " (encrypted)"
			}
			fmt.Fprintf(out, "%d\t%s\t%d unread\t%d messages%s\n", t.Key, t.Subject, t.UnreadCount(), len(t.Messages), lock)
		}
		fmt.Fprintf(out, "%d unread in total\n", inbox.UnreadCount())
		return nil

	case "contacts":
		if len(args) < 2 || len(args) > 3 {
			return errors.New(usage)
		}
		u, err := svc.LoadUserByUsername(ctx, args[1])
		if err != nil {
			return err
		}
		prefix := ""
		if len(args) == 3 {
			prefix = args[2]
		}
		names, err := svc.NewContacts(u).Search(ctx, prefix)
		if err != nil {
			return err
		}
		for _, name := range names {
			fmt.Fprintln(out, name)
		}
		return nil

	case "post":
		if len(args) != 3 {
			return errors.New(usage)
		}
		u, err := svc.LoadUserByUsername(ctx, args[1])
		if err != nil {
			return err
		}
		update := svc.NewUpdate(u)
		update.Text = args[2]
		if err := update.Post(ctx); err != nil {
			for _, reason := range update.ValidationErrors {
				fmt.Fprintln(out, reason)
			}
			return err
		}
		fmt.Fprintf(out, "posted update %d\n", update.Key)
		return nil

	case "timeline":
		if len(args) != 2 {
			return errors.New(usage)
		}
		u, err := svc.LoadUserByUsername(ctx, args[1])
		if err != nil {
			return err
		}
		timeline := svc.NewTimeline(u)
		if err := timeline.Load(ctx); err != nil {
			return err
		}
		for _, update := range timeline.Updates {
			fmt.Fprintf(out, "%d\t%s\t%s\n", update.Key, update.Username, update.Text)
		}
		return nil

	default:
		return errors.New(usage)
	}
}
