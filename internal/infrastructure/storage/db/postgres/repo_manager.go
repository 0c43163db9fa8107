package postgresdb

import (
	"context"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/vulpemventures/dinghy/internal/core/domain"
	"github.com/vulpemventures/dinghy/internal/core/ports"
	"github.com/vulpemventures/dinghy/internal/infrastructure/storage/db/txevents"

	_ "github.com/golang-migrate/migrate/v4/source/file"
)

const (
	postgresDriver             = "pgx"
	insecureDataSourceTemplate = "postgresql://%s:%s@%s:%d/%s?sslmode=disable"
)

//go:embed migration/*.sql
var migrations embed.FS

type repoManager struct {
	pgxPool      *pgxpool.Pool
	txRepository *txRepositoryPg
	dispatcher   *txevents.Dispatcher
}

type DbConfig struct {
	DbUser     string
	DbPassword string
	DbHost     string
	DbPort     int
	DbName     string
	// MigrationSourceURL overrides the embedded migrations, ie.
	// file://path/to/migrations.
	MigrationSourceURL string
}

func NewRepoManager(dbConfig DbConfig) (ports.RepoManager, error) {
	dataSource := insecureDataSourceStr(dbConfig)

	pgxPool, err := pgxpool.Connect(context.Background(), dataSource)
	if err != nil {
		return nil, err
	}

	if err := migrateDb(dataSource, dbConfig.MigrationSourceURL); err != nil {
		pgxPool.Close()
		return nil, fmt.Errorf("failed to migrate db: %w", err)
	}

	rm := &repoManager{
		pgxPool:      pgxPool,
		txRepository: newTxRepositoryPgImpl(pgxPool),
		dispatcher:   txevents.NewDispatcher(),
	}
	go rm.dispatcher.Listen(rm.txRepository.Events())

	return rm, nil
}

func (rm *repoManager) TransactionRepository() domain.TransactionRepository {
	return rm.txRepository
}

func (rm *repoManager) RegisterHandlerForTxEvent(
	eventType domain.TransactionEventType, handler ports.TxEventHandler,
) {
	rm.dispatcher.Register(eventType, handler)
}

func (rm *repoManager) Reset() {
	rm.txRepository.reset()
}

func (rm *repoManager) Close() {
	rm.txRepository.close()
	rm.pgxPool.Close()
}

func migrateDb(dataSource, migrationSourceURL string) error {
	pg := postgres.Postgres{}
	driver, err := pg.Open(dataSource)
	if err != nil {
		return err
	}

	var m *migrate.Migrate
	if migrationSourceURL != "" {
		m, err = migrate.NewWithDatabaseInstance(
			migrationSourceURL, postgresDriver, driver,
		)
	} else {
		source, sourceErr := iofs.New(migrations, "migration")
		if sourceErr != nil {
			return sourceErr
		}
		m, err = migrate.NewWithInstance("iofs", source, postgresDriver, driver)
	}
	if err != nil {
		return err
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

func insecureDataSourceStr(dbConfig DbConfig) string {
	return fmt.Sprintf(
		insecureDataSourceTemplate,
		dbConfig.DbUser,
		dbConfig.DbPassword,
		dbConfig.DbHost,
		dbConfig.DbPort,
		dbConfig.DbName,
	)
}
