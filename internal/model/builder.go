package model

import (
	"github.com/pkg/errors"

	"github.com/enchantedlib/lending-service/internal/errs"
)

// BookBuilder assembles a book of any kind step by step. Zero values of
// optional fields are left as-is; Build validates required fields.
type BookBuilder struct {
	kind      BookKind
	title     string
	author    string
	year      int
	isbn      string
	condition Condition
	status    BookStatus
	location  string
	quantity  int

	genre      string
	bestseller bool

	estimatedValue float64
	rarityLevel    int
	handlingNotes  string

	origin               string
	language             string
	translationAvailable bool
	digitalCopy          bool
	preservationReqs     []string
}

func NewBookBuilder() *BookBuilder {
	return &BookBuilder{
		condition:   ConditionGood,
		status:      StatusAvailable,
		quantity:    1,
		rarityLevel: 1,
	}
}

func (b *BookBuilder) Kind(kind BookKind) *BookBuilder        { b.kind = kind; return b }
func (b *BookBuilder) Title(title string) *BookBuilder        { b.title = title; return b }
func (b *BookBuilder) Author(author string) *BookBuilder      { b.author = author; return b }
func (b *BookBuilder) YearPublished(year int) *BookBuilder    { b.year = year; return b }
func (b *BookBuilder) ISBN(isbn string) *BookBuilder          { b.isbn = isbn; return b }
func (b *BookBuilder) Condition(c Condition) *BookBuilder     { b.condition = c; return b }
func (b *BookBuilder) Status(s BookStatus) *BookBuilder       { b.status = s; return b }
func (b *BookBuilder) Location(loc string) *BookBuilder       { b.location = loc; return b }
func (b *BookBuilder) Quantity(q int) *BookBuilder            { b.quantity = q; return b }
func (b *BookBuilder) Genre(genre string) *BookBuilder        { b.genre = genre; return b }
func (b *BookBuilder) Bestseller(v bool) *BookBuilder         { b.bestseller = v; return b }
func (b *BookBuilder) EstimatedValue(v float64) *BookBuilder  { b.estimatedValue = v; return b }
func (b *BookBuilder) RarityLevel(level int) *BookBuilder     { b.rarityLevel = level; return b }
func (b *BookBuilder) HandlingNotes(notes string) *BookBuilder { b.handlingNotes = notes; return b }
func (b *BookBuilder) Origin(origin string) *BookBuilder      { b.origin = origin; return b }
func (b *BookBuilder) Language(lang string) *BookBuilder      { b.language = lang; return b }
func (b *BookBuilder) TranslationAvailable(v bool) *BookBuilder {
	b.translationAvailable = v
	return b
}
func (b *BookBuilder) DigitalCopyAvailable(v bool) *BookBuilder { b.digitalCopy = v; return b }
func (b *BookBuilder) AddPreservationRequirement(req string) *BookBuilder {
	b.preservationReqs = append(b.preservationReqs, req)
	return b
}

func (b *BookBuilder) Build() (*Book, error) {
	if !b.kind.Valid() {
		return nil, errors.Wrap(errs.ErrValidation, "book kind is required")
	}
	if !b.condition.Valid() {
		return nil, errors.Wrap(errs.ErrValidation, "invalid condition")
	}
	if !b.status.Valid() {
		return nil, errors.Wrap(errs.ErrValidation, "invalid status")
	}

	var (
		book *Book
		err  error
	)
	switch b.kind {
	case KindGeneral:
		book, err = NewGeneralBook(b.title, b.author, b.year, b.isbn, b.genre, b.quantity)
		if err == nil {
			book.General.Bestseller = b.bestseller
		}
	case KindRare:
		book, err = NewRareBook(b.title, b.author, b.year, b.isbn, b.estimatedValue, b.rarityLevel, b.quantity)
		if err == nil {
			book.Rare.HandlingNotes = b.handlingNotes
		}
	case KindAncient:
		book, err = NewAncientScript(b.title, b.author, b.year, b.isbn, b.origin, b.language, b.translationAvailable, b.quantity)
		if err == nil {
			book.Ancient.DigitalCopyAvailable = b.digitalCopy
			book.Ancient.PreservationRequirements = b.preservationReqs
		}
	}
	if err != nil {
		return nil, err
	}

	book.Condition = b.condition
	book.Status = b.status
	book.Location = b.location
	return book, nil
}

// BuildStandardFiction is a director shortcut for a common general book.
func BuildStandardFiction(title, author string, year int, genre string) (*Book, error) {
	return NewBookBuilder().
		Kind(KindGeneral).
		Title(title).
		Author(author).
		YearPublished(year).
		Genre(genre).
		Build()
}

// BuildBestseller is a director shortcut for a bestseller in excellent shape.
func BuildBestseller(title, author string, year int, genre string) (*Book, error) {
	return NewBookBuilder().
		Kind(KindGeneral).
		Title(title).
		Author(author).
		YearPublished(year).
		Genre(genre).
		Bestseller(true).
		Condition(ConditionExcellent).
		Build()
}

// BuildValuableRare is a director shortcut for an appraised rare book.
func BuildValuableRare(title, author string, year int, estimatedValue float64, rarityLevel int) (*Book, error) {
	return NewBookBuilder().
		Kind(KindRare).
		Title(title).
		Author(author).
		YearPublished(year).
		EstimatedValue(estimatedValue).
		RarityLevel(rarityLevel).
		Build()
}

// BuildAncientManuscript is a director shortcut that applies the default
// preservation requirements for manuscripts.
func BuildAncientManuscript(title, author string, year int, origin, language string) (*Book, error) {
	return NewBookBuilder().
		Kind(KindAncient).
		Title(title).
		Author(author).
		YearPublished(year).
		Origin(origin).
		Language(language).
		Condition(ConditionFair).
		AddPreservationRequirement("Temperature control: 18-20C").
		AddPreservationRequirement("Humidity control: 40-45%").
		AddPreservationRequirement("Light exposure: <50 lux").
		Build()
}
