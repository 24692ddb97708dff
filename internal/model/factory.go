package model

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/enchantedlib/lending-service/internal/errs"
)

var validate = validator.New()

type bookParams struct {
	Title         string `validate:"required"`
	Author        string `validate:"required"`
	YearPublished int    `validate:"required"`
	Quantity      int    `validate:"gte=1"`
}

func newBook(kind BookKind, title, author string, year int, isbn string, quantity int) (*Book, error) {
	if err := validate.Struct(bookParams{
		Title:         title,
		Author:        author,
		YearPublished: year,
		Quantity:      quantity,
	}); err != nil {
		return nil, errors.Wrap(errs.ErrValidation, err.Error())
	}
	return &Book{
		ID:              uuid.NewString(),
		Kind:            kind,
		Title:           title,
		Author:          author,
		YearPublished:   year,
		ISBN:            isbn,
		Condition:       ConditionGood,
		Status:          StatusAvailable,
		Quantity:        quantity,
		Available:       quantity,
		AcquisitionDate: time.Now(),
	}, nil
}

func NewGeneralBook(title, author string, year int, isbn, genre string, quantity int) (*Book, error) {
	b, err := newBook(KindGeneral, title, author, year, isbn, quantity)
	if err != nil {
		return nil, err
	}
	b.General = &GeneralInfo{Genre: genre}
	return b, nil
}

func NewRareBook(title, author string, year int, isbn string, estimatedValue float64, rarityLevel, quantity int) (*Book, error) {
	if rarityLevel < 1 || rarityLevel > 10 {
		return nil, errors.Wrap(errs.ErrValidation, "rarity level must be 1-10")
	}
	b, err := newBook(KindRare, title, author, year, isbn, quantity)
	if err != nil {
		return nil, err
	}
	b.Rare = &RareInfo{EstimatedValue: estimatedValue, RarityLevel: rarityLevel}
	return b, nil
}

func NewAncientScript(title, author string, year int, isbn, origin, language string, translationAvailable bool, quantity int) (*Book, error) {
	b, err := newBook(KindAncient, title, author, year, isbn, quantity)
	if err != nil {
		return nil, err
	}
	b.Ancient = &AncientInfo{
		Origin:               origin,
		Language:             language,
		TranslationAvailable: translationAvailable,
	}
	return b, nil
}

type userParams struct {
	Name     string `validate:"required"`
	Email    string `validate:"required,email"`
	Password string `validate:"required"`
}

func newUser(role UserRole, name, email, password string) (*User, error) {
	if err := validate.Struct(userParams{Name: name, Email: email, Password: password}); err != nil {
		return nil, errors.Wrap(errs.ErrValidation, err.Error())
	}
	return &User{
		ID:               uuid.NewString(),
		Role:             role,
		Name:             name,
		Email:            email,
		Password:         password,
		RegistrationDate: time.Now(),
		Active:           true,
	}, nil
}

func NewLibrarian(name, email, password, department, staffID string) (*User, error) {
	u, err := newUser(RoleLibrarian, name, email, password)
	if err != nil {
		return nil, err
	}
	u.Librarian = &LibrarianInfo{Department: department, StaffID: staffID, AdminLevel: 1}
	return u, nil
}

func NewScholar(name, email, password, institution, fieldOfStudy string) (*User, error) {
	u, err := newUser(RoleScholar, name, email, password)
	if err != nil {
		return nil, err
	}
	u.Scholar = &ScholarInfo{
		Institution:   institution,
		FieldOfStudy:  fieldOfStudy,
		AcademicLevel: LevelGeneral,
	}
	return u, nil
}

func NewGuest(name, email, password, address, phone string) (*User, error) {
	u, err := newUser(RoleGuest, name, email, password)
	if err != nil {
		return nil, err
	}
	u.Guest = &GuestInfo{
		Address:        address,
		Phone:          phone,
		MembershipType: MembershipStandard,
	}
	return u, nil
}
