package repository

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/oar-cd/launchpad/db"
	"github.com/oar-cd/launchpad/domain"
	"github.com/oar-cd/launchpad/encryption"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	database, err := db.InitDatabase(db.DBConfig{Path: ":memory:", LogLevel: logger.Silent})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrateAll(database))
	return database
}

func setupRepository(t *testing.T) (DeploymentRepository, *gorm.DB) {
	t.Helper()
	database := setupTestDB(t)

	key, err := encryption.GenerateKey()
	require.NoError(t, err)
	encryptionSvc, err := encryption.NewEncryptionService(key)
	require.NoError(t, err)

	return NewDeploymentRepository(database, encryptionSvc), database
}

func createDeployment(t *testing.T, repo DeploymentRepository, platform domain.Platform, credentials domain.Credentials) *domain.Deployment {
	t.Helper()
	d := domain.NewDeployment("https://github.com/acme/site.git", platform, credentials)
	require.NoError(t, repo.Create(&d))
	return &d
}

func TestDeploymentRepository_CreateSeedsLog(t *testing.T) {
	repo, _ := setupRepository(t)

	d := createDeployment(t, repo, domain.PlatformSimulated, nil)

	assert.Equal(t, domain.DeploymentStatusQueued, d.Status)
	assert.False(t, d.CreatedAt.IsZero())
	require.Len(t, d.Logs, 1)
	assert.Equal(t, domain.SeedLogLine, d.Logs[0].Text)
	assert.Equal(t, domain.LogStreamSystem, d.Logs[0].Stream)

	found, err := repo.FindByID(d.ID)
	require.NoError(t, err)
	assert.Equal(t, d.ID, found.ID)
	assert.Equal(t, "https://github.com/acme/site.git", found.RepositoryURL)
	assert.Equal(t, domain.PlatformSimulated, found.Platform)
	assert.Equal(t, domain.SeedLogLine, found.LogText())
	assert.Nil(t, found.Analysis)
}

func TestDeploymentRepository_CredentialsEncryptedAtRest(t *testing.T) {
	repo, database := setupRepository(t)

	d := createDeployment(t, repo, domain.PlatformManaged, domain.Credentials{
		domain.CredentialDeployToken: "tok_secret",
	})

	var raw db.DeploymentModel
	require.NoError(t, database.First(&raw, "id = ?", d.ID.String()).Error)
	require.NotNil(t, raw.Credentials)
	assert.NotContains(t, *raw.Credentials, "tok_secret")

	found, err := repo.FindByID(d.ID)
	require.NoError(t, err)
	assert.Equal(t, "tok_secret", found.Credentials.Get(domain.CredentialDeployToken))
	assert.Equal(t, domain.PlatformManaged, found.Platform)
}

func TestDeploymentRepository_FindByIDNotFound(t *testing.T) {
	repo, _ := setupRepository(t)

	_, err := repo.FindByID(uuid.New())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDeploymentRepository_ListNewestFirst(t *testing.T) {
	repo, database := setupRepository(t)

	first := createDeployment(t, repo, domain.PlatformSimulated, nil)
	second := createDeployment(t, repo, domain.PlatformContainer, nil)

	// Force distinct creation times
	require.NoError(t, database.Model(&db.DeploymentModel{}).
		Where("id = ?", first.ID.String()).
		UpdateColumn("created_at", time.Now().Add(-time.Hour)).Error)

	list, err := repo.List()
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
	assert.Equal(t, first.ID, list[1].ID)
	assert.Len(t, list[0].Logs, 1)
}

func TestDeploymentRepository_TransitionStatus(t *testing.T) {
	tests := []struct {
		name    string
		path    []domain.DeploymentStatus
		to      domain.DeploymentStatus
		wantErr error
	}{
		{
			name: "queued to building",
			to:   domain.DeploymentStatusBuilding,
		},
		{
			name: "queued to failed",
			to:   domain.DeploymentStatusFailed,
		},
		{
			name:    "queued to deployed",
			to:      domain.DeploymentStatusDeployed,
			wantErr: domain.ErrInvalidTransition,
		},
		{
			name: "building to deployed",
			path: []domain.DeploymentStatus{domain.DeploymentStatusBuilding},
			to:   domain.DeploymentStatusDeployed,
		},
		{
			name:    "deployed is terminal",
			path:    []domain.DeploymentStatus{domain.DeploymentStatusBuilding, domain.DeploymentStatusDeployed},
			to:      domain.DeploymentStatusFailed,
			wantErr: domain.ErrInvalidTransition,
		},
		{
			name:    "failed is terminal",
			path:    []domain.DeploymentStatus{domain.DeploymentStatusFailed},
			to:      domain.DeploymentStatusBuilding,
			wantErr: domain.ErrInvalidTransition,
		},
		{
			name:    "nothing moves back to queued",
			to:      domain.DeploymentStatusQueued,
			wantErr: domain.ErrInvalidTransition,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, _ := setupRepository(t)
			d := createDeployment(t, repo, domain.PlatformSimulated, nil)

			for _, s := range tt.path {
				require.NoError(t, repo.TransitionStatus(d.ID, s))
			}

			err := repo.TransitionStatus(d.ID, tt.to)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)

			found, err := repo.FindByID(d.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.to, found.Status)
		})
	}
}

func TestDeploymentRepository_TransitionStatusNotFound(t *testing.T) {
	repo, _ := setupRepository(t)

	err := repo.TransitionStatus(uuid.New(), domain.DeploymentStatusBuilding)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDeploymentRepository_ConcurrentTransitionsOnlyOneWins(t *testing.T) {
	repo, _ := setupRepository(t)
	d := createDeployment(t, repo, domain.PlatformSimulated, nil)
	require.NoError(t, repo.TransitionStatus(d.ID, domain.DeploymentStatusBuilding))

	targets := []domain.DeploymentStatus{
		domain.DeploymentStatusDeployed,
		domain.DeploymentStatusFailed,
		domain.DeploymentStatusDeployed,
		domain.DeploymentStatusFailed,
	}

	var wg sync.WaitGroup
	errs := make([]error, len(targets))
	for i, target := range targets {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = repo.TransitionStatus(d.ID, target)
		}()
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, domain.ErrInvalidTransition)
		}
	}
	assert.Equal(t, 1, succeeded)
}

func TestDeploymentRepository_AppendLogPreservesOrder(t *testing.T) {
	repo, _ := setupRepository(t)
	d := createDeployment(t, repo, domain.PlatformSimulated, nil)

	first, err := repo.AppendLog(d.ID, domain.LogStreamSystem, "[10:00:00] Cloning")
	require.NoError(t, err)
	second, err := repo.AppendLog(d.ID, domain.LogStreamStdout, "[10:00:01] [Docker Build]: step 1")
	require.NoError(t, err)
	assert.Greater(t, second.Seq, first.Seq)

	found, err := repo.FindByID(d.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SeedLogLine+"\n[10:00:00] Cloning\n[10:00:01] [Docker Build]: step 1", found.LogText())
	assert.Equal(t, domain.LogStreamStdout, found.Logs[2].Stream)
}

func TestDeploymentRepository_ConcurrentAppendsAreNotLost(t *testing.T) {
	repo, _ := setupRepository(t)
	d := createDeployment(t, repo, domain.PlatformSimulated, nil)

	const writers, perWriter = 4, 25
	var wg sync.WaitGroup
	for w := range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			stream := domain.LogStreamStdout
			if w%2 == 1 {
				stream = domain.LogStreamStderr
			}
			for range perWriter {
				_, err := repo.AppendLog(d.ID, stream, "line")
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	found, err := repo.FindByID(d.ID)
	require.NoError(t, err)
	assert.Len(t, found.Logs, 1+writers*perWriter)
	for i := 1; i < len(found.Logs); i++ {
		assert.Greater(t, found.Logs[i].Seq, found.Logs[i-1].Seq)
	}
}

func TestDeploymentRepository_AppendLogUnknownDeployment(t *testing.T) {
	repo, _ := setupRepository(t)

	_, err := repo.AppendLog(uuid.New(), domain.LogStreamSystem, "orphan")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDeploymentRepository_LogsSince(t *testing.T) {
	repo, _ := setupRepository(t)
	d := createDeployment(t, repo, domain.PlatformSimulated, nil)

	seed := d.Logs[0].Seq
	_, err := repo.AppendLog(d.ID, domain.LogStreamSystem, "a")
	require.NoError(t, err)
	_, err = repo.AppendLog(d.ID, domain.LogStreamSystem, "b")
	require.NoError(t, err)

	all, err := repo.LogsSince(d.ID, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	tail, err := repo.LogsSince(d.ID, seed)
	require.NoError(t, err)
	require.Len(t, tail, 2)
	assert.Equal(t, "a", tail[0].Text)
	assert.Equal(t, "b", tail[1].Text)

	_, err = repo.LogsSince(uuid.New(), 0)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDeploymentRepository_UpdateAnalysis(t *testing.T) {
	repo, _ := setupRepository(t)
	d := createDeployment(t, repo, domain.PlatformSimulated, nil)

	require.NoError(t, repo.UpdateAnalysis(d.ID, "first"))
	require.NoError(t, repo.UpdateAnalysis(d.ID, "second"))

	found, err := repo.FindByID(d.ID)
	require.NoError(t, err)
	assert.Equal(t, "second", found.AnalysisStr())

	assert.ErrorIs(t, repo.UpdateAnalysis(uuid.New(), "x"), domain.ErrNotFound)
}

func TestDeploymentRepository_DeleteRemovesLogs(t *testing.T) {
	repo, database := setupRepository(t)
	d := createDeployment(t, repo, domain.PlatformSimulated, nil)
	_, err := repo.AppendLog(d.ID, domain.LogStreamSystem, "line")
	require.NoError(t, err)

	require.NoError(t, repo.Delete(d.ID))

	_, err = repo.FindByID(d.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	var count int64
	require.NoError(t, database.Model(&db.DeploymentLogModel{}).Where("deployment_id = ?", d.ID.String()).Count(&count).Error)
	assert.Zero(t, count)

	assert.ErrorIs(t, repo.Delete(d.ID), domain.ErrNotFound)
}

func TestDeploymentRepository_ListByStatus(t *testing.T) {
	repo, _ := setupRepository(t)

	queued := createDeployment(t, repo, domain.PlatformSimulated, nil)
	building := createDeployment(t, repo, domain.PlatformSimulated, nil)
	failed := createDeployment(t, repo, domain.PlatformSimulated, nil)
	require.NoError(t, repo.TransitionStatus(building.ID, domain.DeploymentStatusBuilding))
	require.NoError(t, repo.TransitionStatus(failed.ID, domain.DeploymentStatusFailed))

	active, err := repo.ListByStatus(domain.DeploymentStatusQueued, domain.DeploymentStatusBuilding)
	require.NoError(t, err)

	ids := []uuid.UUID{}
	for _, d := range active {
		ids = append(ids, d.ID)
	}
	assert.ElementsMatch(t, []uuid.UUID{queued.ID, building.ID}, ids)

	none, err := repo.ListByStatus()
	require.NoError(t, err)
	assert.Empty(t, none)
}
