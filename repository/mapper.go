package repository

import (
	"log/slog"

	"github.com/oar-cd/launchpad/db"
	"github.com/oar-cd/launchpad/domain"
	"github.com/oar-cd/launchpad/encryption"
)

type DeploymentMapper struct {
	encryption *encryption.EncryptionService
}

func NewDeploymentMapper(encryptionSvc *encryption.EncryptionService) *DeploymentMapper {
	return &DeploymentMapper{encryption: encryptionSvc}
}

func (m *DeploymentMapper) ToDomain(d *db.DeploymentModel) *domain.Deployment {
	status, err := domain.ParseDeploymentStatus(d.Status)
	if err != nil {
		status = domain.DeploymentStatusUnknown
	}

	credentials := domain.Credentials{}
	if d.Credentials != nil && m.encryption != nil {
		decrypted, err := m.encryption.DecryptCredentials(*d.Credentials)
		if err != nil {
			// The deployment stays readable; strategies will report the missing keys
			slog.Error("Failed to decrypt deployment credentials",
				"layer", "repository",
				"deployment_id", d.ID,
				"error", err)
		} else {
			credentials = decrypted
		}
	}

	logs := make([]domain.LogLine, len(d.Logs))
	for i, l := range d.Logs {
		logs[i] = logToDomain(&l)
	}

	return &domain.Deployment{
		ID:            d.ID,
		RepositoryURL: d.RepositoryURL,
		Platform:      domain.ParsePlatform(d.Platform),
		Credentials:   credentials,
		Status:        status,
		Logs:          logs,
		Analysis:      d.Analysis,
		CreatedAt:     d.CreatedAt,
		UpdatedAt:     d.UpdatedAt,
	}
}

// ToModel converts a deployment to its row. Logs are stored separately and
// are not part of the returned model.
func (m *DeploymentMapper) ToModel(d *domain.Deployment) (*db.DeploymentModel, error) {
	model := &db.DeploymentModel{
		BaseModel: db.BaseModel{
			ID:        d.ID,
			CreatedAt: d.CreatedAt,
			UpdatedAt: d.UpdatedAt,
		},
		RepositoryURL: d.RepositoryURL,
		Platform:      d.Platform.String(),
		Status:        d.Status.String(),
		Analysis:      d.Analysis,
	}

	if len(d.Credentials) > 0 && m.encryption != nil {
		encrypted, err := m.encryption.EncryptCredentials(d.Credentials)
		if err != nil {
			return nil, err
		}
		model.Credentials = &encrypted
	}

	return model, nil
}

func logToDomain(l *db.DeploymentLogModel) domain.LogLine {
	return domain.LogLine{
		Seq:       l.ID,
		Stream:    domain.LogStream(l.Stream),
		Text:      l.Line,
		CreatedAt: l.CreatedAt,
	}
}
