package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"fieldvault/internal/farm"
	"fieldvault/internal/geo"
)

// ErrFarmNotFound indicates no registered farm matches the id.
var ErrFarmNotFound = errors.New("farm not found")

const farmColumns = "farm_id, farmer_name, farmer_ref, phone_number, crop_type, gps_lat, gps_lon, gps_accuracy, registered_at"

// RegisterFarm validates and persists a new farm, assigning its id and
// registration timestamp.
func (s *Store) RegisterFarm(ctx context.Context, f *farm.Farm) (*farm.Farm, error) {
	if f == nil {
		return nil, errors.New("farm is nil")
	}
	if err := f.Validate(); err != nil {
		return nil, fmt.Errorf("validate farm: %w", err)
	}

	registered := *f
	registered.ID = uuid.NewString()
	registered.RegisteredAt = time.Now().UTC()

	if _, err := s.execWithRetry(
		ctx,
		`INSERT INTO farms (`+farmColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		registered.ID,
		registered.FarmerName,
		registered.FarmerRef,
		nullableString(registered.Phone),
		registered.CropType,
		registered.Location.Lat,
		registered.Location.Lon,
		registered.GPSAccuracy,
		registered.RegisteredAt.Format(time.RFC3339Nano),
	); err != nil {
		return nil, fmt.Errorf("insert farm: %w", err)
	}
	return &registered, nil
}

// GetFarm fetches a registered farm by id.
func (s *Store) GetFarm(ctx context.Context, farmID string) (*farm.Farm, error) {
	row := s.db.QueryRowContext(ensureContext(ctx),
		`SELECT `+farmColumns+` FROM farms WHERE farm_id = ?`, farmID)
	f, err := scanFarm(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("farm %s: %w", farmID, ErrFarmNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get farm: %w", err)
	}
	return f, nil
}

// ListFarms returns every registered farm ordered by registration time.
func (s *Store) ListFarms(ctx context.Context) ([]*farm.Farm, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx),
		`SELECT `+farmColumns+` FROM farms ORDER BY registered_at ASC, farm_id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list farms: %w", err)
	}
	defer rows.Close()

	var farms []*farm.Farm
	for rows.Next() {
		f, err := scanFarm(rows)
		if err != nil {
			return nil, fmt.Errorf("scan farm: %w", err)
		}
		farms = append(farms, f)
	}
	return farms, rows.Err()
}

func scanFarm(scanner interface{ Scan(dest ...any) error }) (*farm.Farm, error) {
	var (
		id            string
		farmerName    string
		farmerRef     string
		phone         sql.NullString
		cropType      string
		lat           float64
		lon           float64
		accuracy      sql.NullFloat64
		registeredRaw sql.NullString
	)
	if err := scanner.Scan(
		&id,
		&farmerName,
		&farmerRef,
		&phone,
		&cropType,
		&lat,
		&lon,
		&accuracy,
		&registeredRaw,
	); err != nil {
		return nil, err
	}

	f := &farm.Farm{
		ID:          id,
		FarmerName:  farmerName,
		FarmerRef:   farmerRef,
		Phone:       phone.String,
		CropType:    cropType,
		Location:    geo.Coordinate{Lat: lat, Lon: lon},
		GPSAccuracy: accuracy.Float64,
	}
	if registered, err := parseTimeString(registeredRaw.String); err == nil {
		f.RegisteredAt = registered
	}
	return f, nil
}
