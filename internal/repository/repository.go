package repository

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"order-tracking-service/internal/model"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	ordersCollection = "orders"
	searchLimit      = 50
	// versión anterior del índice único, que también indexaba guías vacías
	legacyTrackingIndex = "uniq_tracking_number"
)

var _ OrderStore = (*MongoOrderRepository)(nil)

// Mongo implementation
type MongoOrderRepository struct {
	col *mongo.Collection
}

func NewMongoOrderRepository(db *mongo.Database) *MongoOrderRepository {
	return &MongoOrderRepository{col: db.Collection(ordersCollection)}
}

// EnsureIndexes crea el índice único de número de guía (solo documentos con una
// guía no vacía) y el índice que usa la selección del simulador.
func (m *MongoOrderRepository) EnsureIndexes(ctx context.Context) error {
	if _, err := m.col.Indexes().DropOne(ctx, legacyTrackingIndex); err != nil && !isMissingIndex(err) {
		return wrapErr(err)
	}
	_, err := m.col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "tracking_number", Value: 1}},
			Options: options.Index().
				SetName("uniq_tracking_number_set").
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"tracking_number": bson.M{"$gt": ""}}),
		},
		{
			Keys:    bson.D{{Key: "status", Value: 1}, {Key: "created_at", Value: 1}},
			Options: options.Index().SetName("status_created_at"),
		},
	})
	return wrapErr(err)
}

// Insert se usa en pruebas y cargas iniciales; las órdenes las crea el checkout.
func (m *MongoOrderRepository) Insert(ctx context.Context, o *model.Order) error {
	doc := toDocument(o)
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}
	doc.UpdatedAt = doc.CreatedAt
	_, err := m.col.InsertOne(ctx, doc)
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("orden %s: %w", o.ID, model.ErrAlreadyExists)
	}
	return wrapErr(err)
}

func (m *MongoOrderRepository) FindByID(ctx context.Context, orderID string) (*model.Order, error) {
	return m.findOne(ctx, bson.M{"_id": orderID})
}

func (m *MongoOrderRepository) FindByTrackingNumber(ctx context.Context, code string) (*model.Order, error) {
	return m.findOne(ctx, bson.M{"tracking_number": code})
}

func (m *MongoOrderRepository) FindByIDFragment(ctx context.Context, fragment, userID string) ([]*model.Order, error) {
	filter := bson.M{"_id": primitive.Regex{Pattern: regexp.QuoteMeta(fragment), Options: "i"}}
	if userID != "" {
		filter["user_id"] = userID
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}).SetLimit(searchLimit)
	return m.find(ctx, filter, opts)
}

func (m *MongoOrderRepository) TrackingNumberExists(ctx context.Context, code string) (bool, error) {
	n, err := m.col.CountDocuments(ctx, bson.M{"tracking_number": code}, options.Count().SetLimit(1))
	if err != nil {
		return false, wrapErr(err)
	}
	return n > 0, nil
}

func (m *MongoOrderRepository) TrackingNumbersWithPrefix(ctx context.Context, prefix string) ([]string, error) {
	filter := bson.M{"tracking_number": bson.M{"$regex": "^" + regexp.QuoteMeta(prefix)}}
	opts := options.Find().SetProjection(bson.M{"tracking_number": 1})
	cur, err := m.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, wrapErr(err)
	}
	defer cur.Close(ctx)

	var out []string
	for cur.Next(ctx) {
		var v struct {
			TrackingNumber string `bson:"tracking_number"`
		}
		if err := cur.Decode(&v); err != nil {
			return nil, wrapErr(err)
		}
		out = append(out, v.TrackingNumber)
	}
	return out, wrapErr(cur.Err())
}

// AssignTrackingNumber escribe el código solo si la orden aún no tiene uno
// (campo ausente, null o ""). Si ya tenía, devuelve el existente sin modificarlo.
func (m *MongoOrderRepository) AssignTrackingNumber(ctx context.Context, orderID, code string) (string, error) {
	filter := bson.M{"_id": orderID, "tracking_number": bson.M{"$in": bson.A{nil, ""}}}
	update := bson.M{"$set": bson.M{
		"tracking_number": code,
		"updated_at":      time.Now().UTC(),
	}}

	res, err := m.col.UpdateOne(ctx, filter, update)
	if mongo.IsDuplicateKeyError(err) {
		return "", fmt.Errorf("%s: %w", code, model.ErrTrackingTaken)
	}
	if err != nil {
		return "", wrapErr(err)
	}
	if res.MatchedCount == 1 {
		return code, nil
	}

	existing, err := m.FindByID(ctx, orderID)
	if err != nil {
		return "", err
	}
	if !existing.HasTracking() {
		// la escritura no aplicó pero la orden sigue sin guía: se reintenta con otro código
		return "", fmt.Errorf("%s: %w", code, model.ErrTrackingTaken)
	}
	return existing.TrackingNumber, nil
}

// ApplyPayment actualiza en una sola escritura, condicionada a que el estado
// siga siendo expected.
func (m *MongoOrderRepository) ApplyPayment(ctx context.Context, orderID string, expected model.Status, upd model.PaymentUpdate) error {
	set := bson.M{
		"status":         string(upd.Status),
		"payment_status": string(upd.PaymentStatus),
		"updated_at":     time.Now().UTC(),
	}
	if upd.PaypalTransactionID != "" {
		set["paypal_transaction_id"] = upd.PaypalTransactionID
	}

	res, err := m.col.UpdateOne(ctx, bson.M{"_id": orderID, "status": string(expected)}, bson.M{"$set": set})
	if err != nil {
		return wrapErr(err)
	}
	if res.MatchedCount == 1 {
		return nil
	}
	if _, err := m.FindByID(ctx, orderID); err != nil {
		return err
	}
	return model.ErrStatusChanged
}

func (m *MongoOrderRepository) FindStale(ctx context.Context, f model.StaleFilter) ([]*model.Order, error) {
	filter := bson.M{
		"status":     bson.M{"$nin": terminalStatusValues()},
		"created_at": bson.M{"$lt": f.CreatedBefore.UTC()},
	}
	return m.find(ctx, filter, options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
}

// MarkDelivered marca como entregadas todas las órdenes indicadas en una sola
// actualización y devuelve los ids que cambió. Las que ya estén en estado final
// no se tocan. Cada llamada deja su propia marca (delivery_batch) para poder
// leer exactamente las órdenes que actualizó.
func (m *MongoOrderRepository) MarkDelivered(ctx context.Context, orderIDs []string) ([]string, error) {
	if len(orderIDs) == 0 {
		return nil, nil
	}
	batch := uuid.NewString()
	filter := bson.M{
		"_id":    bson.M{"$in": orderIDs},
		"status": bson.M{"$nin": terminalStatusValues()},
	}
	update := bson.M{"$set": bson.M{
		"status":         string(model.StatusDelivered),
		"delivery_batch": batch,
		"updated_at":     time.Now().UTC(),
	}}
	res, err := m.col.UpdateMany(ctx, filter, update)
	if err != nil {
		return nil, wrapErr(err)
	}
	if res.ModifiedCount == 0 {
		return nil, nil
	}

	cur, err := m.col.Find(ctx,
		bson.M{"_id": bson.M{"$in": orderIDs}, "delivery_batch": batch},
		options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return nil, wrapErr(err)
	}
	defer cur.Close(ctx)

	updated := make([]string, 0, res.ModifiedCount)
	for cur.Next(ctx) {
		var v struct {
			ID string `bson:"_id"`
		}
		if err := cur.Decode(&v); err != nil {
			return nil, wrapErr(err)
		}
		updated = append(updated, v.ID)
	}
	return updated, wrapErr(cur.Err())
}

func (m *MongoOrderRepository) findOne(ctx context.Context, filter bson.M) (*model.Order, error) {
	var doc orderDocument
	err := m.col.FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, wrapErr(err)
	}
	return doc.toModel(), nil
}

func (m *MongoOrderRepository) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]*model.Order, error) {
	cur, err := m.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, wrapErr(err)
	}
	defer cur.Close(ctx)

	var out []*model.Order
	for cur.Next(ctx) {
		var doc orderDocument
		if err := cur.Decode(&doc); err != nil {
			return nil, wrapErr(err)
		}
		out = append(out, doc.toModel())
	}
	return out, wrapErr(cur.Err())
}

// isMissingIndex: el índice o la colección todavía no existen.
func isMissingIndex(err error) bool {
	var ce mongo.CommandError
	if !errors.As(err, &ce) {
		return false
	}
	return ce.Code == 26 || ce.Code == 27 || ce.Name == "IndexNotFound" || ce.Name == "NamespaceNotFound"
}

func terminalStatusValues() []string {
	out := make([]string, 0, len(model.TerminalStatuses))
	for _, s := range model.TerminalStatuses {
		out = append(out, string(s))
	}
	return out
}

// Cualquier error del driver distinto de "no encontrado" o clave duplicada se
// reporta como almacén no disponible.
func wrapErr(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %v", model.ErrDatastoreUnavailable, err)
}
