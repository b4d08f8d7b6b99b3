package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
)

// Platform dashboards offered by the menu. Hardcoded on purpose: this is a
// single-user tool and these are the panels the persona belongs to.
var platformDashboards = []struct {
	Name string
	URL  string
}{
	{"MyOpinions", "https://www.myopinions.com.au/dashboard"},
	{"Octopus Group", "https://octopusgroup.com.au/member"},
	{"PureProfile", "https://www.pureprofile.com/au/dashboard"},
}

// runInteractiveMenu is the bare-invocation entrypoint: pick a platform or
// paste a survey URL, then run the loop.
func runInteractiveMenu(ctx context.Context) error {
	reader := bufio.NewReader(os.Stdin)

	fmt.Println("Quenito - survey automation")
	fmt.Println("===========================")
	for i, p := range platformDashboards {
		fmt.Printf("  %d) Open %s dashboard\n", i+1, p.Name)
	}
	fmt.Printf("  %d) Enter a survey URL directly\n", len(platformDashboards)+1)
	fmt.Printf("  %d) Show previous sessions\n", len(platformDashboards)+2)
	fmt.Println("  q) Quit")
	fmt.Print("> ")

	choice, err := reader.ReadString('\n')
	if err != nil {
		return fmt.Errorf("read menu choice: %w", err)
	}
	choice = strings.TrimSpace(choice)

	switch choice {
	case "q", "Q", "":
		return nil
	case fmt.Sprint(len(platformDashboards) + 1):
		fmt.Print("Survey URL: ")
		url, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("read url: %w", err)
		}
		url = strings.TrimSpace(url)
		if url == "" {
			return fmt.Errorf("no URL given")
		}
		return runSurvey(ctx, url)
	case fmt.Sprint(len(platformDashboards) + 2):
		return showPreviousSessions()
	default:
		for i, p := range platformDashboards {
			if choice == fmt.Sprint(i+1) {
				fmt.Printf("Opening %s. Log in and start a survey; the loop takes over on the first question page.\n", p.Name)
				return runSurvey(ctx, p.URL)
			}
		}
		return fmt.Errorf("unrecognized choice %q", choice)
	}
}

// showPreviousSessions lists persisted session metadata.
func showPreviousSessions() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	data, err := os.ReadFile(cfg.Browser.SessionsPath)
	if err != nil {
		if os.IsNotExist(err) {
			fmt.Println("No previous sessions recorded.")
			return nil
		}
		return err
	}
	fmt.Println(string(data))
	return nil
}
