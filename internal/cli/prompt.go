package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/mongohaul/mongohaul/internal/config"
	"github.com/mongohaul/mongohaul/internal/fetch"
)

// FailureAction is the operator's decision after a mid-run failure.
type FailureAction int

const (
	FailureRetry FailureAction = iota
	FailureSkip
	FailureDismiss
)

// parseFailureChoice maps a prompt answer to an action. skipOffered mirrors
// whether skip-and-continue was presented; choosing it anyway re-prompts.
func parseFailureChoice(input string, skipOffered bool) (FailureAction, bool) {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "r", "retry":
		return FailureRetry, true
	case "s", "skip":
		if !skipOffered {
			return 0, false
		}
		return FailureSkip, true
	case "d", "dismiss", "q":
		return FailureDismiss, true
	default:
		return 0, false
	}
}

// promptFailure asks what to do after a failure: retry the remaining
// databases, skip the failed one, or dismiss with whatever completed.
func promptFailure(in io.Reader, skipOffered bool) (FailureAction, error) {
	reader := bufio.NewReader(in)
	for {
		if skipOffered {
			fmt.Print("Choose [r]etry / [s]kip failed database / [d]ismiss: ")
		} else {
			fmt.Print("Choose [r]etry / [d]ismiss: ")
		}
		input, err := reader.ReadString('\n')
		if err != nil {
			return FailureDismiss, err
		}
		if action, ok := parseFailureChoice(input, skipOffered); ok {
			return action, nil
		}
		fmt.Println("Invalid choice, please try again.")
	}
}

// promptYesNo asks a yes/no question, defaulting to no.
func promptYesNo(in io.Reader, question string) (bool, error) {
	fmt.Printf("%s [y/N]: ", question)
	reader := bufio.NewReader(in)
	input, err := reader.ReadString('\n')
	if err != nil {
		return false, err
	}
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

// ensureProxyPassword prompts for the proxy password when the configured
// mode needs one and neither the config nor the environment supplied it.
func ensureProxyPassword(cfg *config.Config) error {
	if !fetch.NeedsProxyPassword(cfg) {
		return nil
	}
	fmt.Printf("Proxy password for %s@%s: ", cfg.HTTP.ProxyUser, cfg.HTTP.ProxyHost)
	pw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return fmt.Errorf("read proxy password: %w", err)
	}
	cfg.HTTP.ProxyPassword = string(pw)
	return nil
}
