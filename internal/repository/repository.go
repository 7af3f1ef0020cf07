package repository

import "gorm.io/gorm"

type Repository struct {
	DB        *gorm.DB
	Snapshots SnapshotRepo
}

func New(db *gorm.DB) *Repository {
	return &Repository{
		DB:        db,
		Snapshots: NewSnapshotRepo(db),
	}
}
