package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"order-tracking-service/internal/model"
)

// OrderStore es el contrato que cumplen las implementaciones Mongo y en memoria.
type OrderStore interface {
	Insert(ctx context.Context, o *model.Order) error
	FindByID(ctx context.Context, orderID string) (*model.Order, error)
	FindByTrackingNumber(ctx context.Context, code string) (*model.Order, error)
	FindByIDFragment(ctx context.Context, fragment, userID string) ([]*model.Order, error)
	TrackingNumberExists(ctx context.Context, code string) (bool, error)
	TrackingNumbersWithPrefix(ctx context.Context, prefix string) ([]string, error)
	AssignTrackingNumber(ctx context.Context, orderID, code string) (string, error)
	ApplyPayment(ctx context.Context, orderID string, expected model.Status, upd model.PaymentUpdate) error
	FindStale(ctx context.Context, f model.StaleFilter) ([]*model.Order, error)
	MarkDelivered(ctx context.Context, orderIDs []string) ([]string, error)
}

// orderDocument es la forma persistida de la orden en la colección "orders".
type orderDocument struct {
	ID                  string         `bson:"_id"`
	UserID              string         `bson:"user_id,omitempty"`
	Status              string         `bson:"status"`
	PaymentStatus       string         `bson:"payment_status"`
	TrackingNumber      string         `bson:"tracking_number,omitempty"`
	Address             string         `bson:"address"`
	Total               money          `bson:"total"`
	Items               []itemDocument `bson:"items"`
	PaymentMethod       string         `bson:"payment_method,omitempty"`
	PaypalTransactionID string         `bson:"paypal_transaction_id,omitempty"`
	CreatedAt           time.Time      `bson:"created_at"`
	UpdatedAt           time.Time      `bson:"updated_at"`
}

type itemDocument struct {
	Name     string `bson:"name"`
	Quantity int    `bson:"quantity"`
	Price    money  `bson:"price"`
	Size     string `bson:"size,omitempty"`
}

func toDocument(o *model.Order) orderDocument {
	items := make([]itemDocument, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, itemDocument{
			Name:     it.Name,
			Quantity: it.Quantity,
			Price:    money(it.Price),
			Size:     it.Size,
		})
	}
	payment := o.PaymentStatus
	if payment == "" {
		payment = model.PaymentUnpaid
	}
	return orderDocument{
		ID:                  o.ID,
		UserID:              o.UserID,
		Status:              string(o.Status),
		PaymentStatus:       string(payment),
		TrackingNumber:      o.TrackingNumber,
		Address:             o.Address,
		Total:               money(o.Total),
		Items:               items,
		PaymentMethod:       o.PaymentMethod,
		PaypalTransactionID: o.PaypalTransactionID,
		CreatedAt:           o.CreatedAt.UTC(),
		UpdatedAt:           o.UpdatedAt.UTC(),
	}
}

func (d orderDocument) toModel() *model.Order {
	items := make([]model.OrderItem, 0, len(d.Items))
	for _, it := range d.Items {
		items = append(items, model.OrderItem{
			Name:     it.Name,
			Quantity: it.Quantity,
			Price:    decimal.Decimal(it.Price),
			Size:     it.Size,
		})
	}
	return &model.Order{
		ID:                  d.ID,
		UserID:              d.UserID,
		Status:              model.Status(d.Status),
		PaymentStatus:       model.PaymentStatus(d.PaymentStatus),
		TrackingNumber:      d.TrackingNumber,
		Address:             d.Address,
		Total:               decimal.Decimal(d.Total),
		Items:               items,
		PaymentMethod:       d.PaymentMethod,
		PaypalTransactionID: d.PaypalTransactionID,
		CreatedAt:           d.CreatedAt,
		UpdatedAt:           d.UpdatedAt,
	}
}

// money se guarda como Decimal128. Al leer acepta también los tipos numéricos
// que pueda haber escrito el checkout (double, int, string).
type money decimal.Decimal

func (m money) MarshalBSONValue() (bsontype.Type, []byte, error) {
	d, err := primitive.ParseDecimal128(decimal.Decimal(m).String())
	if err != nil {
		return 0, nil, err
	}
	return bson.MarshalValue(d)
}

func (m *money) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	rv := bson.RawValue{Type: t, Value: data}
	switch t {
	case bson.TypeDecimal128:
		d, err := decimal.NewFromString(rv.Decimal128().String())
		if err != nil {
			return err
		}
		*m = money(d)
	case bson.TypeDouble:
		*m = money(decimal.NewFromFloat(rv.Double()))
	case bson.TypeInt32:
		*m = money(decimal.NewFromInt32(rv.Int32()))
	case bson.TypeInt64:
		*m = money(decimal.NewFromInt(rv.Int64()))
	case bson.TypeString:
		d, err := decimal.NewFromString(rv.StringValue())
		if err != nil {
			return err
		}
		*m = money(d)
	case bson.TypeNull, bson.TypeUndefined:
		*m = money(decimal.Zero)
	default:
		return fmt.Errorf("tipo bson %s no soportado para montos", t)
	}
	return nil
}
