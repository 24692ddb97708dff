package recommend

import (
	"context"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/enchantedlib/lending-service/internal/catalog"
	"github.com/enchantedlib/lending-service/internal/model"
)

// Era buckets publication years for preference matching.
type Era string

const (
	EraAncient       Era = "Ancient"
	EraRenaissance   Era = "Renaissance"
	EraEnlightenment Era = "Enlightenment"
	EraVictorian     Era = "Victorian"
	EraModern        Era = "Modern"
	EraContemporary  Era = "Contemporary"
)

// EraOf maps a publication year to its era.
func EraOf(year int) Era {
	switch {
	case year < 1500:
		return EraAncient
	case year < 1700:
		return EraRenaissance
	case year < 1800:
		return EraEnlightenment
	case year < 1900:
		return EraVictorian
	case year < 2000:
		return EraModern
	default:
		return EraContemporary
	}
}

// Preferences summarizes a user's reading taste.
type Preferences struct {
	FavoriteGenres  []string `json:"favoriteGenres"`
	FavoriteAuthors []string `json:"favoriteAuthors"`
	PreferredEras   []Era    `json:"preferredEras"`
}

func (p Preferences) empty() bool {
	return len(p.FavoriteGenres) == 0 && len(p.FavoriteAuthors) == 0 && len(p.PreferredEras) == 0
}

// Service scores catalog books against reading history.
type Service struct {
	cat catalog.Catalog
	log *zap.Logger

	mu    sync.Mutex
	prefs map[string]Preferences
}

func NewService(cat catalog.Catalog, log *zap.Logger) *Service {
	return &Service{
		cat:   cat,
		log:   log.Named("recommend"),
		prefs: make(map[string]Preferences),
	}
}

// UpdatePreferences replaces the cached preferences for a user.
func (s *Service) UpdatePreferences(userID string, prefs Preferences) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prefs[userID] = prefs
}

// AnalyzeReadingHistory derives preferences from what the user has already
// read: the three most common genres and authors, and the two most read eras.
// The result is cached for later recommendation calls.
func (s *Service) AnalyzeReadingHistory(ctx context.Context, userID string) (Preferences, error) {
	user, err := s.cat.GetUser(ctx, userID)
	if err != nil {
		return Preferences{}, err
	}
	if len(user.ReadingHistory) == 0 {
		return Preferences{}, nil
	}

	genreCounts := make(map[string]int)
	authorCounts := make(map[string]int)
	eraCounts := make(map[Era]int)

	for _, loan := range user.ReadingHistory {
		book, err := s.cat.GetBook(ctx, loan.BookID)
		if err != nil {
			continue
		}
		if book.General != nil && book.General.Genre != "" {
			genreCounts[book.General.Genre]++
		}
		authorCounts[book.Author]++
		eraCounts[EraOf(book.YearPublished)]++
	}

	prefs := Preferences{
		FavoriteGenres:  topStrings(genreCounts, 3),
		FavoriteAuthors: topStrings(authorCounts, 3),
		PreferredEras:   topEras(eraCounts, 2),
	}
	s.UpdatePreferences(userID, prefs)
	return prefs, nil
}

// Recommendations scores unread books against the user's preferences.
// Genre matches score 3, author matches 4, era matches 2; general books get
// a base point and rare books two extra points for scholars and librarians.
// Users with no history fall back to the most borrowed books.
func (s *Service) Recommendations(ctx context.Context, userID string, maxResults int) ([]*model.Book, error) {
	if maxResults <= 0 {
		maxResults = 10
	}

	s.mu.Lock()
	prefs, ok := s.prefs[userID]
	s.mu.Unlock()
	if !ok || prefs.empty() {
		var err error
		prefs, err = s.AnalyzeReadingHistory(ctx, userID)
		if err != nil {
			return nil, err
		}
	}
	if prefs.empty() {
		return s.PopularBooks(ctx, maxResults)
	}

	user, err := s.cat.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	read := make(map[string]struct{}, len(user.ReadingHistory))
	for _, loan := range user.ReadingHistory {
		read[loan.BookID] = struct{}{}
	}

	books, err := s.cat.ListBooks(ctx)
	if err != nil {
		return nil, err
	}

	type scored struct {
		book  *model.Book
		score int
	}
	var candidates []scored
	for _, book := range books {
		if _, seen := read[book.ID]; seen {
			continue
		}
		score := 0
		if book.General != nil && contains(prefs.FavoriteGenres, book.General.Genre) {
			score += 3
		}
		if contains(prefs.FavoriteAuthors, book.Author) {
			score += 4
		}
		if containsEra(prefs.PreferredEras, EraOf(book.YearPublished)) {
			score += 2
		}
		switch book.Kind {
		case model.KindGeneral:
			score++
		case model.KindRare:
			if user.Role == model.RoleScholar || user.Role == model.RoleLibrarian {
				score += 2
			}
		}
		candidates = append(candidates, scored{book, score})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})
	if len(candidates) > maxResults {
		candidates = candidates[:maxResults]
	}
	out := make([]*model.Book, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, c.book)
	}
	return out, nil
}

// PopularBooks ranks books by how often they were lent out.
func (s *Service) PopularBooks(ctx context.Context, maxResults int) ([]*model.Book, error) {
	if maxResults <= 0 {
		maxResults = 10
	}

	books, err := s.cat.ListBooks(ctx)
	if err != nil {
		return nil, err
	}

	type popular struct {
		book  *model.Book
		count int
	}
	var ranked []popular
	for _, book := range books {
		records, err := s.cat.GetBookLendingRecords(ctx, book.ID)
		if err != nil {
			continue
		}
		if len(records) == 0 {
			continue
		}
		ranked = append(ranked, popular{book, len(records)})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].count > ranked[j].count
	})
	if len(ranked) > maxResults {
		ranked = ranked[:maxResults]
	}
	out := make([]*model.Book, 0, len(ranked))
	for _, r := range ranked {
		out = append(out, r.book)
	}
	return out, nil
}

// SimilarBooks ranks the catalog against a reference book: same author 5,
// same genre 4, published within 20 years 3, same kind 2.
func (s *Service) SimilarBooks(ctx context.Context, bookID string, maxResults int) ([]*model.Book, error) {
	if maxResults <= 0 {
		maxResults = 5
	}

	ref, err := s.cat.GetBook(ctx, bookID)
	if err != nil {
		return nil, err
	}
	books, err := s.cat.ListBooks(ctx)
	if err != nil {
		return nil, err
	}

	type scored struct {
		book  *model.Book
		score int
	}
	var candidates []scored
	for _, book := range books {
		if book.ID == bookID {
			continue
		}
		score := 0
		if book.Author == ref.Author {
			score += 5
		}
		if book.General != nil && ref.General != nil && book.General.Genre == ref.General.Genre {
			score += 4
		}
		if diff := book.YearPublished - ref.YearPublished; diff <= 20 && diff >= -20 {
			score += 3
		}
		if book.Kind == ref.Kind {
			score += 2
		}
		candidates = append(candidates, scored{book, score})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})
	if len(candidates) > maxResults {
		candidates = candidates[:maxResults]
	}
	out := make([]*model.Book, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, c.book)
	}
	return out, nil
}

// ByTopic matches a free-text topic against titles, genres and the research
// topics attached to ancient manuscripts. Only positive scores qualify.
func (s *Service) ByTopic(ctx context.Context, topic string, maxResults int) ([]*model.Book, error) {
	if maxResults <= 0 {
		maxResults = 10
	}
	needle := strings.ToLower(topic)

	books, err := s.cat.ListBooks(ctx)
	if err != nil {
		return nil, err
	}

	type scored struct {
		book  *model.Book
		score int
	}
	var candidates []scored
	for _, book := range books {
		score := 0
		if strings.Contains(strings.ToLower(book.Title), needle) {
			score += 5
		}
		if book.General != nil && book.General.Genre != "" &&
			strings.Contains(strings.ToLower(book.General.Genre), needle) {
			score += 4
		}
		if book.Ancient != nil {
			for _, req := range book.Ancient.PreservationRequirements {
				if strings.Contains(strings.ToLower(req), needle) {
					score += 3
				}
			}
		}
		if score > 0 {
			candidates = append(candidates, scored{book, score})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})
	if len(candidates) > maxResults {
		candidates = candidates[:maxResults]
	}
	out := make([]*model.Book, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, c.book)
	}
	return out, nil
}

func topStrings(counts map[string]int, n int) []string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		return keys[i] < keys[j]
	})
	if len(keys) > n {
		keys = keys[:n]
	}
	return keys
}

func topEras(counts map[Era]int, n int) []Era {
	keys := make([]Era, 0, len(counts))
	for k := range counts {
		if counts[k] > 0 {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		return keys[i] < keys[j]
	})
	if len(keys) > n {
		keys = keys[:n]
	}
	return keys
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func containsEra(list []Era, e Era) bool {
	for _, v := range list {
		if v == e {
			return true
		}
	}
	return false
}
