package validate

import (
	"github.com/baharkarakas/paycore/internal/models"
)

// SettlementEvent checks the fields every settlement webhook needs, plus the
// ones the initiated event uses to create the record.
func SettlementEvent(ev models.SettlementEvent) error {
	var errs Errs
	errs.Add(Required("settlementId", ev.SettlementID))
	errs.Add(Required("merchantId", ev.MerchantID))
	errs.Add(Required("status", ev.Status))
	if ev.Status == models.EventInitiated {
		if ev.TotalAmount == nil {
			errs.Add(&ErrField{Field: "totalAmount", Msg: "required"})
		} else {
			errs.Add(PositiveDecimal("totalAmount", *ev.TotalAmount))
		}
		if ev.SettlementDate == "" {
			errs.Add(&ErrField{Field: "settlementDate", Msg: "required"})
		} else if _, err := models.ParseSettlementDate(ev.SettlementDate); err != nil {
			errs.Add(&ErrField{Field: "settlementDate", Msg: "must be a valid date"})
		}
	} else if ev.TotalAmount != nil {
		errs.Add(PositiveDecimal("totalAmount", *ev.TotalAmount))
	}
	for _, id := range ev.TransactionIDs {
		if id == "" {
			errs.Add(&ErrField{Field: "transactionIds", Msg: "must not contain empty ids"})
			break
		}
	}
	return errs.Err()
}
