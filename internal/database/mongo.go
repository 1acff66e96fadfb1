package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"matcore/entity"
	"matcore/internal/config"
)

const (
	collectionAccounts = "accounts"
	collectionLicenses = "licenses"
	collectionRequests = "license_requests"
)

// seat-holding statuses; a conditional update on this set is the
// compare-and-swap that keeps usage_count within max_users under races
var attachableStatuses = bson.A{entity.LicenseAvailable, entity.LicensePartiallyUsed}

type MongoDB struct {
	clientOptions *options.ClientOptions
	database      string
}

func NewMongoClient(conf *config.Config) *MongoDB {
	if !conf.Mongo.Enabled {
		return nil
	}
	connectionUri := fmt.Sprintf("mongodb://%s:%s", conf.Mongo.Host, conf.Mongo.Port)
	clientOptions := options.Client().ApplyURI(connectionUri)
	if conf.Mongo.User != "" {
		clientOptions.SetAuth(options.Credential{
			Username:   conf.Mongo.User,
			Password:   conf.Mongo.Password,
			AuthSource: conf.Mongo.Database,
		})
	}
	return &MongoDB{
		clientOptions: clientOptions,
		database:      conf.Mongo.Database,
	}
}

func (m *MongoDB) connect(ctx context.Context) (*mongo.Client, error) {
	connection, err := mongo.Connect(ctx, m.clientOptions)
	if err != nil {
		return nil, fmt.Errorf("mongodb connect: %w", err)
	}
	return connection, nil
}

func (m *MongoDB) disconnect(connection *mongo.Client) {
	_ = connection.Disconnect(context.Background())
}

func (m *MongoDB) collection(connection *mongo.Client, name string) *mongo.Collection {
	return connection.Database(m.database).Collection(name)
}

func (m *MongoDB) findError(err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil
	}
	return fmt.Errorf("mongodb find: %w", err)
}

// --- accounts ---

func (m *MongoDB) GetAccount(ctx context.Context, id string) (*entity.Account, error) {
	connection, err := m.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer m.disconnect(connection)

	filter := bson.D{{Key: "_id", Value: id}}
	var account entity.Account
	err = m.collection(connection, collectionAccounts).FindOne(ctx, filter).Decode(&account)
	if err != nil {
		return nil, m.findError(err)
	}
	return &account, nil
}

// Downline lists the active accounts directly under a master. Deactivated
// accounts stay readable elsewhere but never count toward the listing.
func (m *MongoDB) Downline(ctx context.Context, masterId string) ([]*entity.Account, error) {
	connection, err := m.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer m.disconnect(connection)

	filter := bson.D{{Key: "master_id", Value: masterId}, {Key: "is_active", Value: true}}
	opts := options.Find().SetSort(bson.D{{Key: "name", Value: 1}})
	cursor, err := m.collection(connection, collectionAccounts).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("mongodb find: %w", err)
	}
	defer cursor.Close(ctx)

	var accounts []*entity.Account
	if err = cursor.All(ctx, &accounts); err != nil {
		return nil, err
	}
	return accounts, nil
}

// RenewAccount sets the new expiry and reactivates in one update.
func (m *MongoDB) RenewAccount(ctx context.Context, id string, expiry time.Time) error {
	connection, err := m.connect(ctx)
	if err != nil {
		return err
	}
	defer m.disconnect(connection)

	filter := bson.D{{Key: "_id", Value: id}}
	update := bson.D{{Key: "$set", Value: bson.D{
		{Key: "expiry_date", Value: expiry},
		{Key: "is_active", Value: true},
	}}}
	res, err := m.collection(connection, collectionAccounts).UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("account %s not found", id)
	}
	return nil
}

func (m *MongoDB) DeleteAccount(ctx context.Context, id string) error {
	connection, err := m.connect(ctx)
	if err != nil {
		return err
	}
	defer m.disconnect(connection)

	res, err := m.collection(connection, collectionAccounts).DeleteOne(ctx, bson.D{{Key: "_id", Value: id}})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("account %s not found", id)
	}
	return nil
}

// --- licenses ---

func (m *MongoDB) InsertLicense(ctx context.Context, license *entity.License) error {
	connection, err := m.connect(ctx)
	if err != nil {
		return err
	}
	defer m.disconnect(connection)

	_, err = m.collection(connection, collectionLicenses).InsertOne(ctx, license)
	return err
}

// InsertLicenses writes an approval batch in one ordered InsertMany.
func (m *MongoDB) InsertLicenses(ctx context.Context, batch []*entity.License) error {
	connection, err := m.connect(ctx)
	if err != nil {
		return err
	}
	defer m.disconnect(connection)

	docs := make([]interface{}, 0, len(batch))
	for _, license := range batch {
		docs = append(docs, license)
	}
	opts := options.InsertMany().SetOrdered(true)
	_, err = m.collection(connection, collectionLicenses).InsertMany(ctx, docs, opts)
	return err
}

func (m *MongoDB) GetLicense(ctx context.Context, id string) (*entity.License, error) {
	connection, err := m.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer m.disconnect(connection)

	var license entity.License
	err = m.collection(connection, collectionLicenses).FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&license)
	if err != nil {
		return nil, m.findError(err)
	}
	return &license, nil
}

func (m *MongoDB) LicensesByOwner(ctx context.Context, owner string) ([]*entity.License, error) {
	connection, err := m.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer m.disconnect(connection)

	filter := bson.D{{Key: "owned_by", Value: owner}}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := m.collection(connection, collectionLicenses).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("mongodb find: %w", err)
	}
	defer cursor.Close(ctx)

	var licenses []*entity.License
	if err = cursor.All(ctx, &licenses); err != nil {
		return nil, err
	}
	return licenses, nil
}

// AttachLearner grabs a seat with a single conditional update: the $push
// and $inc only apply while the stored status still admits a learner and
// the learner holds no seat yet, so usage_count can never pass max_users
// and no learner is ever listed twice. Returns false when the license is
// absent, full, expired or already holds the learner.
func (m *MongoDB) AttachLearner(ctx context.Context, licenseId string, ref entity.LearnerRef) (bool, error) {
	connection, err := m.connect(ctx)
	if err != nil {
		return false, err
	}
	defer m.disconnect(connection)
	licenses := m.collection(connection, collectionLicenses)

	filter := bson.D{
		{Key: "_id", Value: licenseId},
		{Key: "status", Value: bson.D{{Key: "$in", Value: attachableStatuses}}},
		{Key: "learners.user_id", Value: bson.D{{Key: "$ne", Value: ref.UserId}}},
	}
	update := bson.D{
		{Key: "$push", Value: bson.D{{Key: "learners", Value: ref}}},
		{Key: "$inc", Value: bson.D{{Key: "usage_count", Value: 1}}},
	}
	res, err := licenses.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, err
	}
	if res.ModifiedCount == 0 {
		return false, nil
	}
	return true, m.syncLicenseStatus(ctx, licenses, bson.D{{Key: "_id", Value: licenseId}})
}

// DetachLearner prunes a deleted learner from every license holding it:
// one $pull + $inc per affected document, then a status resync. The pull
// and decrement ride in the same update, so usage_count tracks the
// learners list even under concurrent detachment.
func (m *MongoDB) DetachLearner(ctx context.Context, userId string) (int64, error) {
	connection, err := m.connect(ctx)
	if err != nil {
		return 0, err
	}
	defer m.disconnect(connection)
	licenses := m.collection(connection, collectionLicenses)

	holding := bson.D{{Key: "learners.user_id", Value: userId}}
	affected, err := licenses.Distinct(ctx, "_id", holding)
	if err != nil {
		return 0, fmt.Errorf("mongodb distinct: %w", err)
	}
	if len(affected) == 0 {
		return 0, nil
	}

	update := bson.D{
		{Key: "$pull", Value: bson.D{{Key: "learners", Value: bson.D{{Key: "user_id", Value: userId}}}}},
		{Key: "$inc", Value: bson.D{{Key: "usage_count", Value: -1}}},
	}
	res, err := licenses.UpdateMany(ctx, holding, update)
	if err != nil {
		return 0, err
	}

	resync := bson.D{{Key: "_id", Value: bson.D{{Key: "$in", Value: affected}}}}
	return res.ModifiedCount, m.syncLicenseStatus(ctx, licenses, resync)
}

// syncLicenseStatus recomputes the derived status for every license
// matching base. EXPIRED is sticky and left untouched.
func (m *MongoDB) syncLicenseStatus(ctx context.Context, licenses *mongo.Collection, base bson.D) error {
	notExpired := bson.D{{Key: "status", Value: bson.D{{Key: "$ne", Value: entity.LicenseExpired}}}}

	transitions := []struct {
		cond bson.D
		to   entity.LicenseStatus
	}{
		{bson.D{{Key: "usage_count", Value: bson.D{{Key: "$lte", Value: 0}}}}, entity.LicenseAvailable},
		{bson.D{
			{Key: "usage_count", Value: bson.D{{Key: "$gt", Value: 0}}},
			{Key: "$expr", Value: bson.D{{Key: "$lt", Value: bson.A{"$usage_count", "$max_users"}}}},
		}, entity.LicensePartiallyUsed},
		{bson.D{
			{Key: "usage_count", Value: bson.D{{Key: "$gt", Value: 0}}},
			{Key: "$expr", Value: bson.D{{Key: "$gte", Value: bson.A{"$usage_count", "$max_users"}}}},
		}, entity.LicenseUsed},
	}
	for _, t := range transitions {
		filter := append(append(bson.D{}, base...), notExpired...)
		filter = append(filter, t.cond...)
		update := bson.D{{Key: "$set", Value: bson.D{{Key: "status", Value: t.to}}}}
		if _, err := licenses.UpdateMany(ctx, filter, update); err != nil {
			return fmt.Errorf("mongodb status sync: %w", err)
		}
	}
	return nil
}

// --- license requests ---

func (m *MongoDB) InsertRequest(ctx context.Context, request *entity.LicenseRequest) error {
	connection, err := m.connect(ctx)
	if err != nil {
		return err
	}
	defer m.disconnect(connection)

	_, err = m.collection(connection, collectionRequests).InsertOne(ctx, request)
	return err
}

func (m *MongoDB) GetRequest(ctx context.Context, id string) (*entity.LicenseRequest, error) {
	connection, err := m.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer m.disconnect(connection)

	var request entity.LicenseRequest
	err = m.collection(connection, collectionRequests).FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&request)
	if err != nil {
		return nil, m.findError(err)
	}
	return &request, nil
}

func (m *MongoDB) PendingRequests(ctx context.Context) ([]*entity.LicenseRequest, error) {
	connection, err := m.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer m.disconnect(connection)

	filter := bson.D{{Key: "status", Value: entity.RequestPending}}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	cursor, err := m.collection(connection, collectionRequests).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("mongodb find: %w", err)
	}
	defer cursor.Close(ctx)

	var requests []*entity.LicenseRequest
	if err = cursor.All(ctx, &requests); err != nil {
		return nil, err
	}
	return requests, nil
}

// ResolveRequest flips PENDING to a terminal status with a conditional
// update; a request already resolved by a concurrent caller matches
// nothing and reports false.
func (m *MongoDB) ResolveRequest(ctx context.Context, id string, to entity.RequestStatus, reason string) (bool, error) {
	connection, err := m.connect(ctx)
	if err != nil {
		return false, err
	}
	defer m.disconnect(connection)

	fields := bson.D{
		{Key: "status", Value: to},
		{Key: "updated_at", Value: time.Now().UTC()},
	}
	if reason != "" {
		fields = append(fields, bson.E{Key: "reason", Value: reason})
	}
	filter := bson.D{{Key: "_id", Value: id}, {Key: "status", Value: entity.RequestPending}}
	update := bson.D{{Key: "$set", Value: fields}}
	res, err := m.collection(connection, collectionRequests).UpdateOne(ctx, filter, update)
	if err != nil {
		return false, err
	}
	return res.ModifiedCount == 1, nil
}
