// Package repository provides the data access layer for deployments and their logs.
package repository

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/oar-cd/launchpad/db"
	"github.com/oar-cd/launchpad/domain"
	"github.com/oar-cd/launchpad/encryption"
	"gorm.io/gorm"
)

type DeploymentRepository interface {
	// Create stores a new deployment together with its seed log line
	Create(deployment *domain.Deployment) error
	FindByID(id uuid.UUID) (*domain.Deployment, error)
	// List returns all deployments, newest first
	List() ([]*domain.Deployment, error)
	ListByStatus(statuses ...domain.DeploymentStatus) ([]*domain.Deployment, error)
	// TransitionStatus moves a deployment to status if its current state allows it
	TransitionStatus(id uuid.UUID, status domain.DeploymentStatus) error
	UpdateAnalysis(id uuid.UUID, analysis string) error
	// AppendLog adds one line at the end of the deployment's log
	AppendLog(id uuid.UUID, stream domain.LogStream, line string) (domain.LogLine, error)
	// LogsSince returns lines with a sequence number greater than afterSeq, in order
	LogsSince(id uuid.UUID, afterSeq uint) ([]domain.LogLine, error)
	Delete(id uuid.UUID) error
}

type deploymentRepository struct {
	db     *gorm.DB
	mapper *DeploymentMapper
}

func NewDeploymentRepository(db *gorm.DB, encryptionSvc *encryption.EncryptionService) DeploymentRepository {
	return &deploymentRepository{
		db:     db,
		mapper: NewDeploymentMapper(encryptionSvc),
	}
}

func orderedLogs(tx *gorm.DB) *gorm.DB {
	return tx.Order("deployment_logs.id ASC")
}

func (r *deploymentRepository) Create(deployment *domain.Deployment) error {
	m, err := r.mapper.ToModel(deployment)
	if err != nil {
		slog.Error("Failed to encrypt deployment credentials",
			"layer", "repository",
			"operation", "create_deployment",
			"deployment_id", deployment.ID,
			"error", err)
		return err
	}

	seed := db.DeploymentLogModel{
		DeploymentID: deployment.ID,
		Stream:       string(domain.LogStreamSystem),
		Line:         domain.SeedLogLine,
	}

	err = r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Logs").Create(m).Error; err != nil {
			return err
		}
		return tx.Create(&seed).Error
	})
	if err != nil {
		slog.Error("Database operation failed",
			"layer", "repository",
			"operation", "create_deployment",
			"deployment_id", deployment.ID,
			"error", err)
		return err // Pass through as-is
	}

	m.Logs = []db.DeploymentLogModel{seed}
	// Update the domain object with the timestamps that GORM populated
	created := r.mapper.ToDomain(m)
	created.Credentials = deployment.Credentials
	*deployment = *created
	return nil
}

func (r *deploymentRepository) FindByID(id uuid.UUID) (*domain.Deployment, error) {
	var m db.DeploymentModel
	err := r.db.Preload("Logs", orderedLogs).First(&m, "id = ?", id.String()).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		slog.Error("Database operation failed",
			"layer", "repository",
			"operation", "find_deployment",
			"deployment_id", id,
			"error", err)
		return nil, err
	}
	return r.mapper.ToDomain(&m), nil
}

func (r *deploymentRepository) List() ([]*domain.Deployment, error) {
	var models []db.DeploymentModel
	if err := r.db.Preload("Logs", orderedLogs).Order("created_at DESC").Find(&models).Error; err != nil {
		return nil, err
	}
	return r.toDomainList(models), nil
}

func (r *deploymentRepository) ListByStatus(statuses ...domain.DeploymentStatus) ([]*domain.Deployment, error) {
	if len(statuses) == 0 {
		return []*domain.Deployment{}, nil
	}

	var models []db.DeploymentModel
	err := r.db.Preload("Logs", orderedLogs).
		Where("status IN ?", statusNames(statuses)).
		Order("created_at DESC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	return r.toDomainList(models), nil
}

func (r *deploymentRepository) TransitionStatus(id uuid.UUID, status domain.DeploymentStatus) error {
	predecessors := domain.AllowedPredecessors(status)
	if len(predecessors) == 0 {
		return fmt.Errorf("%w: nothing may move to %s", domain.ErrInvalidTransition, status)
	}

	// The predecessor check and the write happen in one statement, so two
	// concurrent transitions cannot both succeed.
	res := r.db.Model(&db.DeploymentModel{}).
		Where("id = ? AND status IN ?", id.String(), statusNames(predecessors)).
		Updates(map[string]any{
			"status":     status.String(),
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		slog.Error("Database operation failed",
			"layer", "repository",
			"operation", "transition_status",
			"deployment_id", id,
			"status", status.String(),
			"error", res.Error)
		return res.Error
	}
	if res.RowsAffected == 1 {
		return nil
	}

	var current db.DeploymentModel
	err := r.db.Select("status").First(&current, "id = ?", id.String()).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.ErrNotFound
	}
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, current.Status, status)
}

func (r *deploymentRepository) UpdateAnalysis(id uuid.UUID, analysis string) error {
	res := r.db.Model(&db.DeploymentModel{}).
		Where("id = ?", id.String()).
		Updates(map[string]any{
			"analysis":   analysis,
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		slog.Error("Database operation failed",
			"layer", "repository",
			"operation", "update_analysis",
			"deployment_id", id,
			"error", res.Error)
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *deploymentRepository) AppendLog(id uuid.UUID, stream domain.LogStream, line string) (domain.LogLine, error) {
	m := db.DeploymentLogModel{
		DeploymentID: id,
		Stream:       string(stream),
		Line:         line,
	}

	err := r.db.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&db.DeploymentModel{}).Where("id = ?", id.String()).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return domain.ErrNotFound
		}
		return tx.Create(&m).Error
	})
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			slog.Error("Database operation failed",
				"layer", "repository",
				"operation", "append_log",
				"deployment_id", id,
				"error", err)
		}
		return domain.LogLine{}, err
	}

	return logToDomain(&m), nil
}

func (r *deploymentRepository) LogsSince(id uuid.UUID, afterSeq uint) ([]domain.LogLine, error) {
	var count int64
	if err := r.db.Model(&db.DeploymentModel{}).Where("id = ?", id.String()).Count(&count).Error; err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, domain.ErrNotFound
	}

	var models []db.DeploymentLogModel
	err := r.db.Where("deployment_id = ? AND id > ?", id.String(), afterSeq).
		Order("id ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	lines := make([]domain.LogLine, len(models))
	for i, m := range models {
		lines[i] = logToDomain(&m)
	}
	return lines, nil
}

func (r *deploymentRepository) Delete(id uuid.UUID) error {
	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("deployment_id = ?", id.String()).Delete(&db.DeploymentLogModel{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id.String()).Delete(&db.DeploymentModel{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return domain.ErrNotFound
		}
		return nil
	})
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		slog.Error("Database operation failed",
			"layer", "repository",
			"operation", "delete_deployment",
			"deployment_id", id,
			"error", err)
	}
	return err
}

func (r *deploymentRepository) toDomainList(models []db.DeploymentModel) []*domain.Deployment {
	deployments := make([]*domain.Deployment, len(models))
	for i, m := range models {
		deployments[i] = r.mapper.ToDomain(&m)
	}
	return deployments
}

func statusNames(statuses []domain.DeploymentStatus) []string {
	names := make([]string, len(statuses))
	for i, s := range statuses {
		names[i] = s.String()
	}
	return names
}
