package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"resume-match-go/internal/config"
	"resume-match-go/internal/logger"
	"resume-match-go/internal/storage/models"
)

// ErrResumeNotFound is returned when a lookup misses.
var ErrResumeNotFound = errors.New("resume not found")

// MySQL wraps the GORM handle for the metadata store.
type MySQL struct {
	DB *gorm.DB
}

// NewMySQL opens the connection pool and migrates the schema.
func NewMySQL(cfg *config.MySQLConfig) (*MySQL, error) {
	if cfg == nil {
		return nil, fmt.Errorf("mysql config is required")
	}

	gormCfg := &gorm.Config{
		Logger: gormlogger.New(&gormLogWriter{}, gormlogger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  gormLogLevel(cfg.LogLevel),
			IgnoreRecordNotFoundError: true,
		}),
	}

	db, err := gorm.Open(mysql.Open(cfg.DSN()), gormCfg)
	if err != nil {
		return nil, fmt.Errorf("open mysql connection: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get underlying sql.DB: %w", err)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Minute)
	}

	if err := db.AutoMigrate(&models.Resume{}, &models.RankQuery{}); err != nil {
		return nil, fmt.Errorf("migrate schema: %w", err)
	}

	logger.Info().Str("database", cfg.Database).Msg("MySQL connection established")
	return &MySQL{DB: db}, nil
}

// gormLogWriter routes GORM's log lines through zerolog.
type gormLogWriter struct{}

func (w *gormLogWriter) Printf(format string, args ...interface{}) {
	logger.Debug().Msgf(format, args...)
}

func gormLogLevel(level string) gormlogger.LogLevel {
	switch level {
	case "silent":
		return gormlogger.Silent
	case "error":
		return gormlogger.Error
	case "warn":
		return gormlogger.Warn
	case "info":
		return gormlogger.Info
	default:
		return gormlogger.Warn
	}
}

// SaveResume inserts or updates the metadata row for a resume. Because the
// primary key is content-derived, re-saving the same document is an update.
func (m *MySQL) SaveResume(ctx context.Context, resume *models.Resume) error {
	return m.DB.WithContext(ctx).Save(resume).Error
}

// GetResumeByID fetches one metadata row by content ID.
func (m *MySQL) GetResumeByID(ctx context.Context, resumeID string) (*models.Resume, error) {
	var resume models.Resume
	err := m.DB.WithContext(ctx).Where("resume_id = ?", resumeID).First(&resume).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrResumeNotFound
	}
	if err != nil {
		return nil, err
	}
	return &resume, nil
}

// GetResumeByMD5 fetches the row that owns a raw-file MD5, used to answer
// duplicate uploads with the existing resume ID.
func (m *MySQL) GetResumeByMD5(ctx context.Context, fileMD5 string) (*models.Resume, error) {
	var resume models.Resume
	err := m.DB.WithContext(ctx).Where("file_md5 = ?", fileMD5).First(&resume).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrResumeNotFound
	}
	if err != nil {
		return nil, err
	}
	return &resume, nil
}

// UpdateResumeStatus advances the lifecycle status, recording the failure
// reason when the new status is FAILED.
func (m *MySQL) UpdateResumeStatus(ctx context.Context, resumeID, status, errorMessage string) error {
	updates := map[string]interface{}{"status": status}
	if status == models.StatusFailed {
		updates["error_message"] = errorMessage
	} else {
		updates["error_message"] = ""
	}

	result := m.DB.WithContext(ctx).Model(&models.Resume{}).
		Where("resume_id = ?", resumeID).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrResumeNotFound
	}
	return nil
}

// ListResumesByStatus pages through rows in a given status, oldest first.
// Used by the indexer to pick up work left over from interrupted runs.
func (m *MySQL) ListResumesByStatus(ctx context.Context, status string, limit, offset int) ([]models.Resume, error) {
	var resumes []models.Resume
	err := m.DB.WithContext(ctx).
		Where("status = ?", status).
		Order("created_at ASC").
		Limit(limit).
		Offset(offset).
		Find(&resumes).Error
	return resumes, err
}

// CountResumes returns the number of live metadata rows.
func (m *MySQL) CountResumes(ctx context.Context) (int64, error) {
	var count int64
	err := m.DB.WithContext(ctx).Model(&models.Resume{}).Count(&count).Error
	return count, err
}

// SaveRankQuery appends one audit row for a ranking call. Audit failures are
// the caller's to ignore; ranking results never depend on this write.
func (m *MySQL) SaveRankQuery(ctx context.Context, query *models.RankQuery) error {
	return m.DB.WithContext(ctx).Create(query).Error
}

// Close drains the connection pool.
func (m *MySQL) Close() error {
	sqlDB, err := m.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
