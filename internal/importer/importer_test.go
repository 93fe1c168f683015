package importer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Clark-Hu/movie-shelf/internal/catalog"
	"github.com/Clark-Hu/movie-shelf/internal/domain"
)

const placeholder = "/static/poster-placeholder.png"

func testOptions() Options {
	return Options{PosterPlaceholder: placeholder, Concurrency: 2, Logger: zerolog.Nop()}
}

type stubEnricher struct {
	mu        sync.Mutex
	countries map[string][]string
	failures  map[string]error
	calls     []string
}

func (s *stubEnricher) Countries(_ context.Context, title, year string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, title)
	if err := s.failures[title]; err != nil {
		return nil, err
	}
	return s.countries[title], nil
}

func TestReconcile_NewMovieScenario(t *testing.T) {
	plan, err := Reconcile(context.Background(), "Name,Year,Genres\nDune,2021,Sci-Fi;Drama\n", nil, nil, testOptions())
	require.NoError(t, err)

	require.Len(t, plan.ToInsert, 1)
	assert.Empty(t, plan.ToUpdate)
	got := plan.ToInsert[0]
	assert.Equal(t, "Dune", got.Title)
	assert.Equal(t, "2021", got.Year)
	assert.Equal(t, []string{"Sci-Fi", "Drama"}, got.Genres)
	assert.NotEmpty(t, got.ID)
	assert.Equal(t, placeholder, got.PosterURL)
	assert.Equal(t, domain.RuntimeUnknown, got.Runtime)
	assert.Nil(t, got.CommunityRating)
}

func TestReconcile_PartitionsAgainstExisting(t *testing.T) {
	csv := strings.Join([]string{
		"Name,Year,Genres,ParentalRating,CommunityRating,Runtime,ImagePrimary",
		" zodiac ,2007,Thriller; Crime ;,R,7.7,157,/p/zodiac.jpg",
		"Heat,1995,Crime,R,abc,170.4,x",
		"Amélie,2001,Comedy,R,8.3,oops,",
		"Missing Year,,Drama,,,,",
		",1999,Drama,,,,",
	}, "\n")
	existing := []domain.MovieKey{{ID: "zodiac-id", Title: "Zodiac", Year: "2007"}}

	plan, err := Reconcile(context.Background(), csv, existing, nil, testOptions())
	require.NoError(t, err)

	assert.Equal(t, 3, plan.Rows)
	assert.Equal(t, 2, plan.Skipped)
	require.Len(t, plan.ToUpdate, 1)
	require.Len(t, plan.ToInsert, 2)
	assert.Equal(t, plan.Rows, len(plan.ToInsert)+len(plan.ToUpdate)+plan.Duplicates)

	zodiac := plan.ToUpdate[0]
	assert.Equal(t, "zodiac-id", zodiac.ID)
	assert.Equal(t, "zodiac", zodiac.Title)
	assert.Equal(t, []string{"Thriller", "Crime"}, zodiac.Genres)
	require.NotNil(t, zodiac.CommunityRating)
	assert.InDelta(t, 7.7, *zodiac.CommunityRating, 0.0001)
	assert.Equal(t, "157", zodiac.Runtime)
	assert.Equal(t, "/p/zodiac.jpg", zodiac.PosterURL)
	assert.Equal(t, domain.FieldGenres|domain.FieldCommunityRating|domain.FieldRuntime|domain.FieldPoster, zodiac.Fields)

	heat := plan.ToInsert[0]
	assert.Equal(t, "Heat", heat.Title)
	assert.Nil(t, heat.CommunityRating)
	assert.Equal(t, "170", heat.Runtime)
	assert.Equal(t, placeholder, heat.PosterURL)

	amelie := plan.ToInsert[1]
	assert.Equal(t, domain.RuntimeUnknown, amelie.Runtime)
	assert.Equal(t, placeholder, amelie.PosterURL)
	assert.NotEqual(t, heat.ID, amelie.ID)
}

func TestReconcile_DuplicateKeysLastRowWins(t *testing.T) {
	csv := "Name,Year,Genres\nDune,2021,Drama\nHeat,1995,Crime\n DUNE ,2021,Sci-Fi\n"

	plan, err := Reconcile(context.Background(), csv, nil, nil, testOptions())
	require.NoError(t, err)

	assert.Equal(t, 3, plan.Rows)
	assert.Equal(t, 1, plan.Duplicates)
	require.Len(t, plan.ToInsert, 2)
	assert.Equal(t, "DUNE", plan.ToInsert[0].Title)
	assert.Equal(t, []string{"Sci-Fi"}, plan.ToInsert[0].Genres)
	assert.Equal(t, "Heat", plan.ToInsert[1].Title)
	assert.Equal(t, plan.Rows, len(plan.ToInsert)+len(plan.ToUpdate)+plan.Duplicates)
}

func TestReconcile_TitleHeaderAliasAndBOM(t *testing.T) {
	csv := "\ufefftitle , YEAR,genres\nAlien,1979,Horror\n"

	plan, err := Reconcile(context.Background(), csv, nil, nil, testOptions())
	require.NoError(t, err)
	require.Len(t, plan.ToInsert, 1)
	assert.Equal(t, "Alien", plan.ToInsert[0].Title)
	assert.Equal(t, []string{"Horror"}, plan.ToInsert[0].Genres)
}

func TestReconcile_OptionalColumns(t *testing.T) {
	csv := "Name,Year,Director,Cast,Overview\n" +
		`Heat,1995,Michael Mann,"Al Pacino; Robert De Niro",A cop chases a thief.` + "\n"

	plan, err := Reconcile(context.Background(), csv, nil, nil, testOptions())
	require.NoError(t, err)
	require.Len(t, plan.ToInsert, 1)
	heat := plan.ToInsert[0]
	assert.Equal(t, "Michael Mann", heat.Director)
	assert.Equal(t, []string{"Al Pacino", "Robert De Niro"}, heat.Cast)
	assert.Equal(t, "A cop chases a thief.", heat.Synopsis)
	assert.Empty(t, heat.Genres)
	assert.NotNil(t, heat.Genres)
}

func TestReconcile_MissingColumns(t *testing.T) {
	tests := []struct {
		name string
		csv  string
	}{
		{"no title", "Year,Genres\n2021,Drama\n"},
		{"no year", "Name,Genres\nDune,Drama\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Reconcile(context.Background(), tt.csv, nil, nil, testOptions())
			assert.ErrorIs(t, err, ErrMissingColumn)
		})
	}
}

func TestReconcile_MalformedInput(t *testing.T) {
	_, err := Reconcile(context.Background(), "", nil, nil, testOptions())
	assert.ErrorIs(t, err, ErrMalformedCSV)

	_, err = ReconcileRatings("   ", KeyLookup(nil))
	assert.ErrorIs(t, err, ErrMissingColumn)
}

func TestReconcile_EnrichmentFailuresAreIsolated(t *testing.T) {
	enricher := &stubEnricher{
		countries: map[string][]string{
			"Amélie": {"France"},
			"Zodiac": {"United States of America"},
		},
		failures: map[string]error{"Heat": errors.New("upstream timeout")},
	}
	csv := "Name,Year\nAmélie,2001\nHeat,1995\nZodiac,2007\nUnknown,2020\n"

	plan, err := Reconcile(context.Background(), csv, nil, enricher, testOptions())
	require.NoError(t, err)

	require.Len(t, plan.ToInsert, 4)
	assert.Equal(t, 1, plan.EnrichFailures)
	assert.Equal(t, []string{"France"}, plan.ToInsert[0].OriginCountry)
	assert.Equal(t, []string{}, plan.ToInsert[1].OriginCountry)
	assert.Equal(t, []string{"United States of America"}, plan.ToInsert[2].OriginCountry)
	assert.Equal(t, []string{}, plan.ToInsert[3].OriginCountry)
	assert.Len(t, enricher.calls, 4)
}

func TestReconcile_UpdatesCarryOnlySuppliedFields(t *testing.T) {
	enricher := &stubEnricher{
		countries: map[string][]string{"Heat": {"United States of America"}},
		failures:  map[string]error{"Alien": errors.New("upstream timeout")},
	}
	csv := "Name,Year,Genres,CommunityRating,Director\n" +
		"Dune,2021,Sci-Fi,8,\n" +
		"Heat,1995,,,Michael Mann\n" +
		"Alien,1979,Horror,,\n"
	existing := []domain.MovieKey{
		{ID: "dune-id", Title: "Dune", Year: "2021"},
		{ID: "heat-id", Title: "Heat", Year: "1995"},
		{ID: "alien-id", Title: "Alien", Year: "1979"},
	}

	plan, err := Reconcile(context.Background(), csv, existing, enricher, testOptions())
	require.NoError(t, err)
	require.Len(t, plan.ToUpdate, 3)

	assert.Equal(t, domain.FieldGenres|domain.FieldCommunityRating, plan.ToUpdate[0].Fields)
	assert.Equal(t, domain.FieldDirector|domain.FieldOriginCountry, plan.ToUpdate[1].Fields)
	assert.Equal(t, []string{"United States of America"}, plan.ToUpdate[1].OriginCountry)
	assert.Equal(t, domain.FieldGenres, plan.ToUpdate[2].Fields)
	assert.Equal(t, 1, plan.EnrichFailures)
}

type countingEnricher struct {
	active  atomic.Int32
	maxSeen atomic.Int32
}

func (c *countingEnricher) Countries(_ context.Context, _, _ string) ([]string, error) {
	n := c.active.Add(1)
	for {
		seen := c.maxSeen.Load()
		if n <= seen || c.maxSeen.CompareAndSwap(seen, n) {
			break
		}
	}
	time.Sleep(5 * time.Millisecond)
	c.active.Add(-1)
	return []string{"Japan"}, nil
}

func TestReconcile_EnrichmentConcurrencyIsBounded(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("Name,Year\n")
	for i := 0; i < 20; i++ {
		fmt.Fprintf(&sb, "Movie %d,2000\n", i)
	}
	enricher := &countingEnricher{}

	plan, err := Reconcile(context.Background(), sb.String(), nil, enricher, testOptions())
	require.NoError(t, err)
	require.Len(t, plan.ToInsert, 20)
	assert.LessOrEqual(t, enricher.maxSeen.Load(), int32(2))
	for i, m := range plan.ToInsert {
		assert.Equal(t, fmt.Sprintf("Movie %d", i), m.Title)
		assert.Equal(t, []string{"Japan"}, m.OriginCountry)
	}
}

func TestReconcile_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Reconcile(ctx, "Name,Year\nDune,2021\n", nil, &stubEnricher{}, testOptions())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestReconcile_RoundTripThroughCatalog(t *testing.T) {
	csv := "Name,Year,Genres\nZodiac,2007,Thriller\nAmélie,2001,Comedy\nAlien,1979,Horror\n"
	plan, err := Reconcile(context.Background(), csv, nil, nil, testOptions())
	require.NoError(t, err)

	view := catalog.DeriveToken(plan.ToInsert, "", "", 10, time.Now())
	got := make([]string, 0, len(view.Visible))
	for _, m := range view.Visible {
		got = append(got, m.Title)
	}
	assert.Equal(t, []string{"Alien", "Amélie", "Zodiac"}, got)
}

func TestReconcileRatings_Scenario(t *testing.T) {
	lookup := KeyLookup([]domain.MovieKey{{ID: "dune-id", Title: "Dune", Year: "2021"}})

	plan, err := ReconcileRatings("Title,Year,Your Rating\nDune,2021,9\nUnknown,1999,7\n", lookup)
	require.NoError(t, err)

	assert.Equal(t, []RatingEntry{{MovieID: "dune-id", Rating: 9}}, plan.Applied)
	assert.Equal(t, 1, plan.Skipped)
}

func TestReconcileRatings_Validation(t *testing.T) {
	lookup := KeyLookup([]domain.MovieKey{
		{ID: "a", Title: "Alien", Year: "1979"},
		{ID: "h", Title: "Heat", Year: "1995"},
		{ID: "z", Title: "Zodiac", Year: "2007"},
	})
	csv := strings.Join([]string{
		"Title,Year,Your Rating",
		"Alien,1979,10",
		"Heat,1995,11",
		"Heat,1995,-1",
		"Heat,1995,great",
		"Zodiac,2007,",
		",2007,5",
		"alien ,1979,8.5",
		"Zodiac,2007,0",
	}, "\n")

	plan, err := ReconcileRatings(csv, lookup)
	require.NoError(t, err)

	assert.Equal(t, []RatingEntry{{MovieID: "a", Rating: 8.5}, {MovieID: "z", Rating: 0}}, plan.Applied)
	assert.Equal(t, 5, plan.Skipped)
	assert.Equal(t, 1, plan.Duplicates)
}

func TestReconcileRatings_MissingColumn(t *testing.T) {
	_, err := ReconcileRatings("Title,Year\nDune,2021\n", KeyLookup(nil))
	assert.ErrorIs(t, err, ErrMissingColumn)
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"Sci-Fi", "Drama"}, SplitList(" Sci-Fi ;Drama;; "))
	assert.Equal(t, []string{}, SplitList(""))
}

func TestParseHelpers(t *testing.T) {
	assert.Nil(t, ParseCommunityRating("NaN"))
	assert.Nil(t, ParseCommunityRating("12"))
	require.NotNil(t, ParseCommunityRating(" 6.4 "))
	assert.InDelta(t, 6.4, *ParseCommunityRating("6.4"), 0.0001)

	assert.Equal(t, "N/A", ParseRuntime("NaN"))
	assert.Equal(t, "N/A", ParseRuntime("-3"))
	assert.Equal(t, "N/A", ParseRuntime("1e30"))
	assert.Equal(t, "N/A", ParseRuntime("100000"))
	assert.Equal(t, "1440", ParseRuntime("1440"))
	assert.Equal(t, "95", ParseRuntime("95"))
}

func FuzzReconcile(f *testing.F) {
	f.Add("Name,Year,Genres\nDune,2021,Sci-Fi;Drama\n")
	f.Add("Title,Year\n,\n")
	f.Add("\ufeffName,Year\n\"a,b\",1\n")

	f.Fuzz(func(t *testing.T, csv string) {
		plan, err := Reconcile(context.Background(), csv, nil, nil, testOptions())
		if err != nil {
			return
		}
		if plan.Rows != len(plan.ToInsert)+len(plan.ToUpdate)+plan.Duplicates {
			t.Fatalf("partition mismatch: rows=%d insert=%d update=%d dup=%d",
				plan.Rows, len(plan.ToInsert), len(plan.ToUpdate), plan.Duplicates)
		}
	})
}
