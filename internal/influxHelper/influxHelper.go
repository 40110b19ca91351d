package influxHelper

import (
	"fmt"
	"time"

	influxdb "github.com/influxdata/influxdb/client/v2"

	"github.com/bcaldwell/finimporter/pkg/categorizer"
	"github.com/bcaldwell/finimporter/pkg/config"
	"github.com/bcaldwell/finimporter/pkg/financialimporter"
)

func CreateInfluxClient(secrets config.InfluxSecrets) (influxdb.Client, error) {
	return influxdb.NewHTTPClient(influxdb.HTTPConfig{
		Addr:     secrets.InfluxEndpoint,
		Username: secrets.InfluxUsername,
		Password: secrets.InfluxPassword,
	})
}

func CreateDatabase(influxClient influxdb.Client, name string) error {
	q := influxdb.NewQuery(fmt.Sprintf("CREATE DATABASE %q", name), "", "")

	response, err := influxClient.Query(q)
	if err != nil {
		return err
	}

	return response.Error()
}

// Recorder writes import and categorization metrics to one database.
type Recorder struct {
	client      influxdb.Client
	database    string
	measurement string
}

func NewRecorder(client influxdb.Client, database, measurement string) *Recorder {
	return &Recorder{client: client, database: database, measurement: measurement}
}

func (r *Recorder) Write(points ...*influxdb.Point) error {
	bp, err := influxdb.NewBatchPoints(influxdb.BatchPointsConfig{
		Database:  r.database,
		Precision: "s",
	})
	if err != nil {
		return err
	}

	bp.AddPoints(points)

	return r.client.Write(bp)
}

func (r *Recorder) RecordImport(result *financialimporter.ImportResult, at time.Time) error {
	pt, err := ImportPoint(r.measurement, result, at)
	if err != nil {
		return err
	}
	return r.Write(pt)
}

func (r *Recorder) RecordCategorization(result *categorizer.PassResult, at time.Time) error {
	points := []*influxdb.Point{}

	pt, err := CategorizationPoint(r.measurement+"_categorization", result, at)
	if err != nil {
		return err
	}
	points = append(points, pt)

	for category, count := range result.ByCategory {
		pt, err := influxdb.NewPoint(
			r.measurement+"_categories",
			map[string]string{"category": string(category)},
			map[string]interface{}{"count": count},
			at,
		)
		if err != nil {
			return err
		}
		points = append(points, pt)
	}

	return r.Write(points...)
}

// ImportPoint summarizes one import run as a point tagged by account and
// format.
func ImportPoint(measurement string, result *financialimporter.ImportResult, at time.Time) (*influxdb.Point, error) {
	tags := map[string]string{
		"account": result.AccountID,
		"format":  result.FormatKey,
	}

	fields := map[string]interface{}{
		"total_rows": result.TotalRows,
		"imported":   result.Imported,
		"duplicates": result.DuplicateCount,
		"errors":     result.ErrorCount,
		"run_id":     result.RunID,
	}

	return influxdb.NewPoint(measurement, tags, fields, at)
}

func CategorizationPoint(measurement string, result *categorizer.PassResult, at time.Time) (*influxdb.Point, error) {
	fields := map[string]interface{}{
		"examined": result.Examined,
		"updated":  result.Updated,
	}

	return influxdb.NewPoint(measurement, nil, fields, at)
}
