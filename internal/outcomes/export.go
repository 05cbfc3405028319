package outcomes

import (
	"encoding/csv"
	"os"
	"strconv"

	"github.com/jengu-tech/pricing-service/internal/domain"
)

func writeCSV(path string, records []domain.Outcome) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	if err := w.Write([]string{"property_id", "timestamp", "quoted_price", "accepted", "final_price", "comp_p50", "action_id"}); err != nil {
		return err
	}

	for _, o := range records {
		finalPrice := ""
		if o.FinalPrice != nil {
			finalPrice = o.FinalPrice.String()
		}
		compP50 := ""
		if o.CompP50 != nil {
			compP50 = o.CompP50.String()
		}
		row := []string{
			o.PropertyID,
			o.Timestamp.Format("2006-01-02T15:04:05Z07:00"),
			o.QuotedPrice.String(),
			strconv.FormatBool(o.Accepted),
			finalPrice,
			compP50,
			o.ActionID,
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	return nil
}
