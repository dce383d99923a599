package accounts

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"bookkeeping-go/internal/apperr"
	"bookkeeping-go/internal/models"
	"bookkeeping-go/internal/statement"
	"bookkeeping-go/internal/vectorstore"
)

// Chart of accounts columns.
const (
	ColName        = "Name"
	ColCategory    = "Category"
	ColSubCategory = "Sub Category"
	ColCode        = "Account Code"
	ColLink        = "Link"

	bankLinkPrefix    = "ca.810"
	bankSubCategory   = "Bank Accounts"
	maxNameLength     = 100
	maxSubCategoryLen = 100
	maxCodeLength     = 20
	maxLinkLength     = 50
)

type Store interface {
	UpsertAccount(ctx context.Context, a *models.Account) (created bool, err error)
}

type Result struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
}

type Importer struct {
	store   Store
	vectors vectorstore.Store
	log     zerolog.Logger
}

// NewImporter builds an importer. vectors may be nil, in which case imported
// accounts are not indexed for similarity search.
func NewImporter(store Store, vectors vectorstore.Store, log zerolog.Logger) *Importer {
	return &Importer{store: store, vectors: vectors, log: log.With().Str("component", "accounts").Logger()}
}

// Import loads a chart of accounts file into the user's accounts, creating
// new ones and updating those whose name already exists. Rows without a name
// or with an unknown category are skipped.
func (i *Importer) Import(ctx context.Context, path string, userID uint) (Result, error) {
	var res Result

	table, err := statement.ReadTable(path,
		[]string{ColName, ColCategory},
		[]string{ColSubCategory, ColCode, ColLink},
	)
	if err != nil {
		return res, err
	}

	for _, row := range table.Rows {
		a, ok := accountFromRow(row)
		if !ok {
			i.log.Warn().Int("row", row.Line).Str("name", row.Get(ColName)).Str("category", row.Get(ColCategory)).Msg("skipping account row")
			res.Skipped++
			continue
		}
		a.UserID = userID

		created, err := i.store.UpsertAccount(ctx, &a)
		if err != nil {
			return res, apperr.Wrap(apperr.PersistenceError, err)
		}
		if created {
			res.Created++
		} else {
			res.Updated++
		}

		if i.vectors != nil {
			if err := vectorstore.AddAccount(ctx, i.vectors, a); err != nil {
				i.log.Warn().Err(err).Uint("account_id", a.ID).Msg("index account")
			}
		}
	}

	i.log.Info().Uint("user_id", userID).Int("created", res.Created).Int("updated", res.Updated).Int("skipped", res.Skipped).Msg("chart of accounts imported")
	return res, nil
}

func accountFromRow(row statement.Row) (models.Account, bool) {
	a := models.Account{
		Name:        statement.Truncate(row.Get(ColName), maxNameLength),
		SubCategory: statement.Truncate(row.Get(ColSubCategory), maxSubCategoryLen),
		Code:        statement.Truncate(row.Get(ColCode), maxCodeLength),
		Link:        statement.Truncate(row.Get(ColLink), maxLinkLength),
		IsActive:    true,
	}
	if a.Name == "" {
		return a, false
	}

	if IsBankAccount(a) {
		a.Category = models.CategoryAssets
		a.SubCategory = bankSubCategory
		return a, true
	}

	cat, ok := models.NormalizeAccountCategory(row.Get(ColCategory))
	if !ok {
		return a, false
	}
	a.Category = cat
	return a, true
}

// IsBankAccount reports whether a is one of the bank accounts statements can
// be uploaded against.
func IsBankAccount(a models.Account) bool {
	return strings.HasPrefix(strings.ToLower(a.Link), bankLinkPrefix)
}
