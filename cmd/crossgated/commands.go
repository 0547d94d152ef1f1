package main

import (
	"fmt"
	"strings"

	"github.com/perch-io/crossgate/internal/gate/domain"
)

// execute dispatches one protocol line and returns the reply plus
// whether the loop should stop. Rules are written in the compact
// "origin|dest" form with either side empty for single-sided rules.
func (app *Application) execute(line string) (string, bool) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return "", false
	}
	cmd := strings.ToUpper(fields[0])
	args := fields[1:]

	switch cmd {
	case "EVAL":
		return app.cmdEval(args), false
	case "ALLOW":
		return app.cmdMutateRule(args, app.store.AddAllowRule), false
	case "UNALLOW":
		return app.cmdMutateRule(args, app.store.RemoveAllowRule), false
	case "DENY":
		return app.cmdMutateRule(args, app.store.AddDenyRule), false
	case "UNDENY":
		return app.cmdMutateRule(args, app.store.RemoveDenyRule), false
	case "TEMP":
		return app.cmdMutateRule(args, app.store.AddTemporaryAllowRule), false
	case "REVOKE":
		app.engine.RevokeTemporaryPermissions()
		return "OK", false
	case "EXPORT":
		return app.cmdExport(args), false
	case "CLICK":
		if len(args) != 2 {
			return "ERR CLICK <origin> <dest>", false
		}
		app.engine.RegisterLinkClicked(args[0], args[1])
		return "OK", false
	case "FORM":
		if len(args) != 2 {
			return "ERR FORM <origin> <dest>", false
		}
		app.engine.RegisterFormSubmitted(args[0], args[1])
		return "OK", false
	case "HISTORY":
		if len(args) != 1 {
			return "ERR HISTORY <dest>", false
		}
		app.engine.RegisterHistoryRequest(args[0])
		return "OK", false
	case "REDIRECT":
		if len(args) != 2 {
			return "ERR REDIRECT <origin> <dest>", false
		}
		app.engine.RegisterAllowedRedirect(args[0], args[1])
		return "OK", false
	case "REMAP":
		if len(args) != 2 {
			return "ERR REMAP <original-dest> <new-dest>", false
		}
		app.engine.MapDestinations(args[0], args[1])
		return "OK", false
	case "REJECTED":
		if len(args) != 1 {
			return "ERR REJECTED <uri>", false
		}
		return fmt.Sprintf("%v", app.engine.OriginHasRejectedRequests(args[0])), false
	case "LEVEL":
		return app.cmdLevel(args), false
	case "QUIT":
		return "BYE", true
	default:
		return fmt.Sprintf("ERR unknown command %q", cmd), false
	}
}

// cmdEval evaluates origin dest with optional context flag words:
// click, form, history, redirect, toplevel.
func (app *Application) cmdEval(args []string) string {
	if len(args) < 2 {
		return "ERR EVAL <origin> <dest> [click|form|history|redirect|toplevel]"
	}
	var ctx domain.RequestContext
	for _, flag := range args[2:] {
		switch strings.ToLower(flag) {
		case "click":
			ctx.IsLinkClick = true
		case "form":
			ctx.IsFormSubmission = true
		case "history":
			ctx.IsHistoryNav = true
		case "redirect":
			ctx.IsRedirect = true
		case "toplevel":
			ctx.IsTopLevelNavigation = true
		default:
			return fmt.Sprintf("ERR unknown context flag %q", flag)
		}
	}
	d := app.engine.Evaluate(args[0], args[1], ctx)
	verdict := "DENY"
	if d.Allow {
		verdict = "ALLOW"
	}
	if d.MatchedRule != "" {
		return fmt.Sprintf("%s %s (%s)", verdict, d.Reason, d.MatchedRule)
	}
	return fmt.Sprintf("%s %s", verdict, d.Reason)
}

func (app *Application) cmdMutateRule(args []string, mutate func(domain.Rule) error) string {
	if len(args) != 1 {
		return "ERR expected one rule in origin|dest form"
	}
	r, err := domain.ParseRule(args[0])
	if err != nil {
		return fmt.Sprintf("ERR %v", err)
	}
	if err := mutate(r); err != nil {
		return fmt.Sprintf("ERR %v", err)
	}
	return "OK"
}

func (app *Application) cmdExport(args []string) string {
	if len(args) != 1 {
		return "ERR EXPORT allow|deny"
	}
	switch strings.ToLower(args[0]) {
	case "allow":
		return app.store.Export(domain.ActionAllow)
	case "deny":
		return app.store.Export(domain.ActionDeny)
	default:
		return "ERR EXPORT allow|deny"
	}
}

func (app *Application) cmdLevel(args []string) string {
	if len(args) == 0 {
		return app.engine.IdentLevel().String()
	}
	level, err := domain.ParseIdentLevel(args[0])
	if err != nil {
		return fmt.Sprintf("ERR %v", err)
	}
	app.engine.SetIdentLevel(level)
	return "OK"
}
