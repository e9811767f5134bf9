package db

import (
	"time"

	"github.com/google/uuid"
)

type BaseModel struct {
	ID        uuid.UUID `gorm:"type:char(36);primaryKey"`
	CreatedAt time.Time `gorm:"index"`
	UpdatedAt time.Time
}

type DeploymentModel struct {
	BaseModel
	RepositoryURL string  `gorm:"not null;check:repository_url <> ''"`
	Platform      string  `gorm:"not null;check:platform <> ''"`
	Credentials   *string `gorm:"type:text"`                           // Encrypted JSON object
	Status        string  `gorm:"not null;index;check:status <> ''"` // QUEUED, BUILDING, DEPLOYED, FAILED
	Analysis      *string `gorm:"type:text"`                           // Last computed diagnosis

	Logs []DeploymentLogModel `gorm:"foreignKey:DeploymentID;constraint:OnDelete:CASCADE"`
}

func (DeploymentModel) TableName() string {
	return "deployments"
}

// DeploymentLogModel is one line of a deployment log. The autoincrement ID is
// the line's position in the log.
type DeploymentLogModel struct {
	ID           uint      `gorm:"primaryKey;autoIncrement"`
	DeploymentID uuid.UUID `gorm:"type:char(36);not null;index"`
	Stream       string    `gorm:"not null;check:stream <> ''"` // system, stdout, stderr
	Line         string    `gorm:"type:text;not null"`
	CreatedAt    time.Time
}

func (DeploymentLogModel) TableName() string {
	return "deployment_logs"
}

type MigrationModel struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	Name      string `gorm:"not null;unique"`
	AppliedAt time.Time
}

func (MigrationModel) TableName() string {
	return "migrations"
}
