package db

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/benjazzy/turtle-wrangler/internal/wire"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	database, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	return database
}

func TestCreateAndGetTurtle(t *testing.T) {
	database := openTestDB(t)
	ctx := context.Background()

	row := Row{Name: "Daniel", X: 1, Y: 2, Z: 3, Heading: wire.HeadingNorth, Type: wire.TurtleNormal, Fuel: 100}
	require.NoError(t, database.CreateTurtle(ctx, row))

	got, err := database.GetTurtle(ctx, "Daniel")
	require.NoError(t, err)
	require.Equal(t, row, got)
}

func TestGetTurtleMissing(t *testing.T) {
	database := openTestDB(t)
	_, err := database.GetTurtle(context.Background(), "Nobody")
	require.ErrorIs(t, err, sql.ErrNoRows)
}

func TestCreateTurtleUpserts(t *testing.T) {
	database := openTestDB(t)
	ctx := context.Background()

	require.NoError(t, database.CreateTurtle(ctx, Row{Name: "Daniel", Heading: wire.HeadingNorth, Type: wire.TurtleNormal}))
	require.NoError(t, database.CreateTurtle(ctx, Row{Name: "Daniel", X: 5, Heading: wire.HeadingSouth, Type: wire.TurtleAdvanced, Fuel: 42}))

	got, err := database.GetTurtle(ctx, "Daniel")
	require.NoError(t, err)
	require.Equal(t, int64(5), got.X)
	require.Equal(t, wire.HeadingSouth, got.Heading)
	require.Equal(t, wire.TurtleAdvanced, got.Type)
	require.Equal(t, int64(42), got.Fuel)
}

func TestListTurtlesOrderedByName(t *testing.T) {
	database := openTestDB(t)
	ctx := context.Background()

	require.NoError(t, database.CreateTurtle(ctx, Row{Name: "Zane"}))
	require.NoError(t, database.CreateTurtle(ctx, Row{Name: "Aaron"}))

	rows, err := database.ListTurtles(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, "Aaron", rows[0].Name)
	require.Equal(t, "Zane", rows[1].Name)
}

func TestUpdatePositionHeadingFuel(t *testing.T) {
	database := openTestDB(t)
	ctx := context.Background()
	require.NoError(t, database.CreateTurtle(ctx, Row{Name: "Daniel"}))

	require.NoError(t, database.UpdatePosition(ctx, "Daniel", wire.Coords{X: 1, Y: 2, Z: 3}))
	require.NoError(t, database.UpdateHeading(ctx, "Daniel", wire.HeadingWest))
	require.NoError(t, database.UpdateFuel(ctx, "Daniel", 10))

	got, err := database.GetTurtle(ctx, "Daniel")
	require.NoError(t, err)
	require.Equal(t, int64(1), got.X)
	require.Equal(t, int64(2), got.Y)
	require.Equal(t, int64(3), got.Z)
	require.Equal(t, wire.HeadingWest, got.Heading)
	require.Equal(t, int64(10), got.Fuel)
}

func TestUpdateCoordinateAxes(t *testing.T) {
	database := openTestDB(t)
	ctx := context.Background()
	require.NoError(t, database.CreateTurtle(ctx, Row{Name: "Daniel"}))

	require.NoError(t, database.UpdateCoordinate(ctx, "Daniel", "Y", 77))
	got, err := database.GetTurtle(ctx, "Daniel")
	require.NoError(t, err)
	require.Equal(t, int64(77), got.Y)

	require.Error(t, database.UpdateCoordinate(ctx, "Daniel", "Q", 1))
}
