// Package app orchestrates the CLI verbs over the domain packages.
package app

import (
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/felixgeelhaar/jobs-as-code/internal/domain/config"
	"github.com/felixgeelhaar/jobs-as-code/internal/domain/execution"
	"github.com/felixgeelhaar/jobs-as-code/internal/domain/job"
	"github.com/felixgeelhaar/jobs-as-code/internal/ports"
)

// ClientFactory returns the remote accessor for an account.
type ClientFactory func(accountID int) (ports.JobsAPI, error)

// cacheResetter is implemented by accessors that cache remote reads for the
// duration of a run.
type cacheResetter interface {
	ResetCache()
}

// App is the main application orchestrator.
type App struct {
	newClient ClientFactory
	loader    *config.Loader
	logger    ports.Logger
	recorder  execution.Recorder
	baseURL   string
	out       io.Writer
}

// New creates an App that reaches the remote service through newClient and
// writes exported YAML to out.
func New(newClient ClientFactory, out io.Writer) *App {
	logger := ports.NewNopLogger()
	return &App{
		newClient: newClient,
		loader:    config.NewLoader(config.WithLogger(logger)),
		logger:    logger,
		out:       out,
	}
}

// WithLogger sets the logger shared by every component.
func (a *App) WithLogger(l ports.Logger) *App {
	a.logger = l
	a.loader = config.NewLoader(config.WithLogger(l))
	return a
}

// WithRecorder sets the recorder of apply outcomes.
func (a *App) WithRecorder(r execution.Recorder) *App {
	a.recorder = r
	return a
}

// WithBaseURL sets the base URL used to build job links.
func (a *App) WithBaseURL(u string) *App {
	a.baseURL = u
	return a
}

func (a *App) load(ctx context.Context, patterns, vars []string) (*config.Result, error) {
	res, err := a.loader.Load(ctx, patterns, vars)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return res, nil
}

// client resolves the accessor of the account that owns jobs. When the jobs
// span several accounts the first identifier's account wins and the
// inconsistency is logged.
func (a *App) client(ctx context.Context, jobs map[string]*job.Job) (ports.JobsAPI, []int, error) {
	ids := make([]string, 0, len(jobs))
	for id := range jobs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	seen := make(map[int]bool)
	var accounts []int
	for _, id := range ids {
		acc := jobs[id].AccountID
		if !seen[acc] {
			seen[acc] = true
			accounts = append(accounts, acc)
		}
	}
	if len(accounts) == 0 {
		return nil, nil, config.NewUserError(config.ErrCodeInvalidFlags, "no account id available").
			WithSuggestion("Set account_id in the jobs file or pass --account-id")
	}
	if len(accounts) > 1 {
		a.logger.Error(ctx, "jobs belong to several accounts; only the first one is used",
			ports.F("account_ids", accounts))
	}

	api, err := a.connect(accounts[0])
	if err != nil {
		return nil, nil, err
	}
	return api, accounts, nil
}

func (a *App) connect(accountID int) (ports.JobsAPI, error) {
	api, err := a.newClient(accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to create client for account %d: %w", accountID, err)
	}
	return api, nil
}

func resetCache(api ports.JobsAPI) {
	if r, ok := api.(cacheResetter); ok {
		r.ResetCache()
	}
}
