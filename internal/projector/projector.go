// Package projector maps state blob fragments onto CarRecord.
package projector

import (
	"encoding/json"

	"github.com/law-makers/autospot-crawl/internal/crawlerr"
	"github.com/law-makers/autospot-crawl/internal/stateblob"
	"github.com/law-makers/autospot-crawl/pkg/models"
)

// Route fragments identifying state blob entries
const (
	FragmentUsedBaseInfo    = "rest/v2/used-car/cars"
	FragmentNewBaseInfo     = "rest/car/base-info"
	FragmentPriceBlock      = "rest/car/price-block"
	FragmentCharacteristics = "rest/car/all-characteristics"
	FragmentUsedOptions     = "rest/used-car/options-two-column"
	FragmentNewOptions      = "rest/car/all-options-two-column"
	FragmentDealerOffers    = "rest/dealer/direct-offer"
)

// BaseInfoFragment returns the base info fragment for category
func BaseInfoFragment(c models.Category) string {
	if c == models.CategoryNew {
		return FragmentNewBaseInfo
	}
	return FragmentUsedBaseInfo
}

// OptionsFragment returns the options fragment for category
func OptionsFragment(c models.Category) string {
	if c == models.CategoryNew {
		return FragmentNewOptions
	}
	return FragmentUsedOptions
}

// Project builds the record for the detail page at url. photos are the
// already normalized gallery URLs. Missing fragments never abort the
// projection: the affected fields keep their null or empty defaults and a
// PROJECTION_ERROR is reported for each.
func Project(url string, blob *stateblob.Blob, category models.Category, photos []string) (models.CarRecord, []error) {
	var errs []error
	missing := func(fragment string) {
		errs = append(errs, crawlerr.Projection("fragment missing", nil).
			WithDetail("url", url).
			WithDetail("fragment", fragment))
	}

	if photos == nil {
		photos = []string{}
	}
	record := models.CarRecord{
		URL:             url,
		Category:        category,
		Characteristics: json.RawMessage(`{}`),
		Photos:          photos,
		Options:         []models.OptionGroup{},
	}

	base, ok := decodeObject(blob.FindBody(BaseInfoFragment(category)))
	if !ok {
		missing(BaseInfoFragment(category))
	}
	record.Brand = base.str("brand_name")
	record.Model = base.str("model_name")
	record.Generation = base.str("model_name")
	record.Year = base.integer("year")
	record.Mileage = base.integer("run")
	record.Color = base.str("color_name")
	record.City = base.str("city_name")

	if category == models.CategoryNew {
		if block, ok := decodeObject(blob.FindBody(FragmentPriceBlock)); ok {
			record.Price = block.child("prices").number("price")
		} else {
			missing(FragmentPriceBlock)
		}

		offers, ok := dealerOffers(blob.FindBody(FragmentDealerOffers))
		if !ok {
			missing(FragmentDealerOffers)
		}
		record.Dealer = models.NewDealer(offers)
	} else {
		record.Price = base.child("prices").number("price")
		record.Dealer = models.UsedDealer(base.str("display_dealer_phone"))
	}

	if chars := blob.FindBody(FragmentCharacteristics); chars != nil {
		record.Characteristics = chars
	} else {
		missing(FragmentCharacteristics)
	}

	if body := blob.FindBody(OptionsFragment(category)); body != nil {
		record.Options = FlattenOptions(body)
	} else {
		missing(OptionsFragment(category))
	}

	return record, errs
}

// FlattenOptions turns {columns: [[{name, options: [{name}]}]]} into an
// ordered list of option groups. Groups with an empty or missing name, or
// without options, are skipped.
func FlattenOptions(body json.RawMessage) []models.OptionGroup {
	groups := []models.OptionGroup{}

	root, ok := decodeObject(body)
	if !ok {
		return groups
	}

	for _, col := range root.list("columns") {
		column, _ := col.([]interface{})
		for _, g := range column {
			m, ok := g.(map[string]interface{})
			if !ok {
				continue
			}
			group := object(m)
			name := group.str("name")
			if name == nil || *name == "" || !group.has("options") {
				continue
			}

			list := []string{}
			for _, o := range group.list("options") {
				opt, ok := o.(map[string]interface{})
				if !ok {
					continue
				}
				if n := object(opt).str("name"); n != nil {
					list = append(list, *n)
				}
			}
			groups = append(groups, models.OptionGroup{Name: *name, List: list})
		}
	}
	return groups
}

func dealerOffers(body json.RawMessage) ([]models.DealerOffer, bool) {
	root, ok := decodeObject(body)
	if !ok || !root.has("items") {
		return []models.DealerOffer{}, false
	}

	offers := []models.DealerOffer{}
	for _, it := range root.list("items") {
		m, ok := it.(map[string]interface{})
		if !ok {
			continue
		}
		item := object(m)
		offers = append(offers, models.DealerOffer{
			Name:  item.str("dealer_group_name"),
			Phone: item.str("phone"),
		})
	}
	return offers, true
}
