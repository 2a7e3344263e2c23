package http

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/seqsubmit/internal/common"
	"github.com/dmitrijs2005/seqsubmit/internal/server/auth"
	"github.com/dmitrijs2005/seqsubmit/internal/server/models"
	"github.com/dmitrijs2005/seqsubmit/internal/server/services"
)

type fakeUsers struct {
	identities  map[string]auth.Identity
	identifyErr error

	loginResult *services.LoginResult
	loginReply  services.Reply

	registerReply services.Reply
	registered    []string

	activated []string

	setPasswordOK bool
	setPassword   []string

	list []models.UserSummary
}

func (f *fakeUsers) Register(ctx context.Context, email, password string, isAdmin bool) (services.Reply, error) {
	f.registered = append(f.registered, email)
	return f.registerReply, nil
}

func (f *fakeUsers) Activate(ctx context.Context, token string) (services.Reply, error) {
	f.activated = append(f.activated, token)
	if token == "good" {
		return services.Reply{Message: "Account activated", Code: 200}, nil
	}
	return services.Reply{Message: "Activation link is invalid or has already been used", Code: 200}, nil
}

func (f *fakeUsers) Login(ctx context.Context, email, password string) (*services.LoginResult, services.Reply, error) {
	return f.loginResult, f.loginReply, nil
}

func (f *fakeUsers) AdminToken(ctx context.Context, who auth.Identity) (string, error) {
	if !who.IsAdmin {
		return "", common.ErrorUnauthorized
	}
	return "admin-token-for-" + who.Email, nil
}

func (f *fakeUsers) Identify(ctx context.Context, userID string) (*auth.Identity, error) {
	if f.identifyErr != nil {
		return nil, f.identifyErr
	}
	id, ok := f.identities[userID]
	if !ok {
		return nil, common.ErrorUnauthorized
	}
	return &id, nil
}

func (f *fakeUsers) SetPassword(ctx context.Context, email, current, next string) (bool, error) {
	f.setPassword = append(f.setPassword, email, current, next)
	return f.setPasswordOK, nil
}

func (f *fakeUsers) List(ctx context.Context) ([]models.UserSummary, error) {
	return f.list, nil
}

type fakeSamples struct {
	mu        sync.Mutex
	addCalls  int
	addErrs   []error
	added     []services.NewSample
	addResult *models.Sample
	addMsg    string

	listedFor []string
	list      []*models.Sample

	download *services.Download
	reply    services.Reply
	fileReqs []string

	archiveDate time.Time
}

func (f *fakeSamples) Add(ctx context.Context, req services.NewSample) (*models.Sample, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.addCalls++
	f.added = append(f.added, req)
	if len(f.addErrs) > 0 {
		err := f.addErrs[0]
		f.addErrs = f.addErrs[1:]
		if err != nil {
			return nil, "", err
		}
	}
	return f.addResult, f.addMsg, nil
}

func (f *fakeSamples) List(ctx context.Context, email string) ([]*models.Sample, error) {
	f.listedFor = append(f.listedFor, email)
	return f.list, nil
}

func (f *fakeSamples) Reference(ctx context.Context, who auth.Identity, primaryKey string) (*services.Download, services.Reply, error) {
	f.fileReqs = append(f.fileReqs, who.Email+":"+primaryKey)
	return f.download, f.reply, nil
}

func (f *fakeSamples) Result(ctx context.Context, who auth.Identity, primaryKey, fileType string) (*services.Download, services.Reply, error) {
	f.fileReqs = append(f.fileReqs, who.Email+":"+primaryKey+":"+fileType)
	return f.download, f.reply, nil
}

func (f *fakeSamples) WeeklyArchive(ctx context.Context, date time.Time) (*services.Download, error) {
	f.archiveDate = date
	return &services.Download{Filename: "samples_2022_47.zip", Data: []byte("PK")}, nil
}

type fakeQuota struct {
	remaining services.Remaining
	dates     []time.Time
}

func (f *fakeQuota) Remaining(ctx context.Context, date time.Time) (services.Remaining, error) {
	f.dates = append(f.dates, date)
	return f.remaining, nil
}

type fakeSettings struct {
	current *models.Settings
	updates []services.SettingsUpdate
	actors  []string
	reply   services.Reply
}

func (f *fakeSettings) Current(ctx context.Context) (*models.Settings, error) {
	return f.current, nil
}

func (f *fakeSettings) Update(ctx context.Context, actorEmail string, u services.SettingsUpdate) (services.Reply, error) {
	f.actors = append(f.actors, actorEmail)
	f.updates = append(f.updates, u)
	return f.reply, nil
}

type fakeResults struct {
	uploads []services.ResultUpload
	reply   services.Reply
}

func (f *fakeResults) Process(ctx context.Context, up services.ResultUpload) (services.Reply, error) {
	f.uploads = append(f.uploads, up)
	return f.reply, nil
}
