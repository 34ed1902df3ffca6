// Package botconfig declares the compile-time list of actions the bot
// loads. Adding a behavior means adding a candidate here; the registry
// validates and skips broken ones without failing startup.
package botconfig

import (
	"os"
	"strconv"
	"time"

	"github.com/lisanmuaddib/meshbot-go/pkg/actions"
	"github.com/sirupsen/logrus"
)

// ActionConfig carries the collaborators actions are built with.
type ActionConfig struct {
	Logger *logrus.Logger
}

// ConfigureActions returns the full action candidate list, intervals and
// messages taken from the environment.
func ConfigureActions(config ActionConfig) []actions.Candidate {
	log := config.Logger

	welcomeMsg := os.Getenv("WELCOME_MSG")
	rebootInterval := secondsFromEnv("REBOOT_INTERVAL_SECONDS", 6*time.Hour)
	statusInterval := secondsFromEnv("STATUS_INTERVAL_SECONDS", time.Hour)
	cleanInterval := secondsFromEnv("CLEAN_INTERVAL_SECONDS", 30*time.Minute)

	return []actions.Candidate{
		{
			ID: "ping_pong",
			New: func() (actions.Action, error) {
				return actions.NewPingPongAction(log), nil
			},
		},
		{
			ID: "welcome_message",
			New: func() (actions.Action, error) {
				return actions.NewWelcomeAction(log, actions.WelcomeOptions{
					Message: welcomeMsg,
				}), nil
			},
		},
		{
			ID: "reboot_node",
			New: func() (actions.Action, error) {
				return actions.NewRebootAction(log, rebootInterval), nil
			},
		},
		{
			ID: "status_reporter",
			New: func() (actions.Action, error) {
				return actions.NewStatusReporterAction(log, statusInterval), nil
			},
		},
		{
			ID: "clean_nodedb",
			New: func() (actions.Action, error) {
				return actions.NewCleanNodeDBAction(log, cleanInterval), nil
			},
		},
	}
}

func secondsFromEnv(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	seconds, err := strconv.Atoi(value)
	if err != nil || seconds <= 0 {
		return fallback
	}
	return time.Duration(seconds) * time.Second
}
