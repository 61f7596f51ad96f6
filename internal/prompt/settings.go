package prompt

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/jayteealao/colab/internal/config"
)

// settingsFields is the flat, string-typed view of Settings the form edits.
// Webhook lists and headers are not in the form; they are kept as they are.
type settingsFields struct {
	RepoURL      string
	Branch       string
	PostCloneCmd string

	JarFile      string
	MappingsPath string
	PreCmd       string
	PostCmd      string
	Java         string
	MainClass    string
	Classpath    string
	Args         string

	HookFailurePolicy  string
	FetchFailurePolicy string
	LockTimeout        string

	SlackWebhookURL   string
	SlackChannel      string
	DiscordWebhookURL string
}

func fieldsFrom(s *config.Settings) *settingsFields {
	return &settingsFields{
		RepoURL:            s.Repo.URL,
		Branch:             s.Repo.Branch,
		PostCloneCmd:       s.Repo.PostCloneCmd,
		JarFile:            s.Session.JarFile,
		MappingsPath:       s.Session.MappingsPath,
		PreCmd:             s.Session.PreCmd,
		PostCmd:            s.Session.PostCmd,
		Java:               s.Session.Java,
		MainClass:          s.Session.MainClass,
		Classpath:          s.Session.Classpath,
		Args:               s.Session.Args,
		HookFailurePolicy:  s.HookFailurePolicy,
		FetchFailurePolicy: s.FetchFailurePolicy,
		LockTimeout:        s.LockTimeout.String(),
		SlackWebhookURL:    s.Notifications.Slack.WebhookURL,
		SlackChannel:       s.Notifications.Slack.Channel,
		DiscordWebhookURL:  s.Notifications.Discord.WebhookURL,
	}
}

// apply returns a copy of base with the form values, validated.
func (f *settingsFields) apply(base *config.Settings) (*config.Settings, error) {
	timeout, err := time.ParseDuration(strings.TrimSpace(f.LockTimeout))
	if err != nil {
		return nil, fmt.Errorf("invalid lock timeout %q: %w", f.LockTimeout, err)
	}

	s := *base
	s.Repo.URL = f.RepoURL
	s.Repo.Branch = f.Branch
	s.Repo.PostCloneCmd = f.PostCloneCmd
	s.Session.JarFile = f.JarFile
	s.Session.MappingsPath = f.MappingsPath
	s.Session.PreCmd = f.PreCmd
	s.Session.PostCmd = f.PostCmd
	s.Session.Java = f.Java
	s.Session.MainClass = f.MainClass
	s.Session.Classpath = f.Classpath
	s.Session.Args = f.Args
	s.HookFailurePolicy = f.HookFailurePolicy
	s.FetchFailurePolicy = f.FetchFailurePolicy
	s.LockTimeout = timeout
	s.Notifications.Slack.WebhookURL = f.SlackWebhookURL
	s.Notifications.Slack.Channel = f.SlackChannel
	s.Notifications.Discord.WebhookURL = f.DiscordWebhookURL

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

func newSettingsForm(f *settingsFields) *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title("Repository URL").
				Description("Remote the shared checkout is cloned from").
				Value(&f.RepoURL).Validate(validateRepoURL),
			huh.NewInput().Title("Branch").Value(&f.Branch).Validate(validateRequired),
			huh.NewInput().Title("Post-clone command").
				Description("Runs in the new checkout after clone").
				Value(&f.PostCloneCmd),
		).Title("Repository"),

		huh.NewGroup(
			huh.NewInput().Title("Jar file").
				Description("Relative to the repository").
				Value(&f.JarFile).Validate(validateRequired),
			huh.NewInput().Title("Mappings path").
				Description("Staged into the session patch, then reset").
				Value(&f.MappingsPath).Validate(validateMappingsPath),
			huh.NewInput().Title("Pre-session command").Value(&f.PreCmd),
			huh.NewInput().Title("Post-session command").Value(&f.PostCmd),
			huh.NewInput().Title("Java executable").Value(&f.Java).Validate(validateRequired),
			huh.NewInput().Title("Main class").Value(&f.MainClass).Validate(validateRequired),
			huh.NewInput().Title("Classpath").Value(&f.Classpath),
			huh.NewInput().Title("Extra arguments").Value(&f.Args),
		).Title("Session"),

		huh.NewGroup(
			huh.NewSelect[string]().Title("When a hook fails").
				Options(
					huh.NewOption("Log and continue", "ignore"),
					huh.NewOption("Abort the operation", "abort"),
				).
				Value(&f.HookFailurePolicy),
			huh.NewSelect[string]().Title("When a remote fails to fetch").
				Options(
					huh.NewOption("Abort the fetch", "abort"),
					huh.NewOption("Continue with other remotes", "continue"),
				).
				Value(&f.FetchFailurePolicy),
			huh.NewInput().Title("Lock timeout").
				Description("How long to wait for another operation, e.g. 30s").
				Value(&f.LockTimeout).Validate(validateDuration),
		).Title("Behavior"),

		huh.NewGroup(
			huh.NewInput().Title("Slack webhook URL").Value(&f.SlackWebhookURL).Validate(validateWebhookURL),
			huh.NewInput().Title("Slack channel").Placeholder("#mappings").Value(&f.SlackChannel),
			huh.NewInput().Title("Discord webhook URL").Value(&f.DiscordWebhookURL).Validate(validateWebhookURL),
		).Title("Notifications"),
	)
}
