package cmd

import (
	"fmt"

	"github.com/fes-tools/landrecon/internal/utils"
	"github.com/fes-tools/landrecon/pkg/blob"
	"github.com/fes-tools/landrecon/pkg/consolidation"
	"github.com/fes-tools/landrecon/pkg/landings"
	"github.com/fes-tools/landrecon/pkg/providers/catchactivity"
	"github.com/fes-tools/landrecon/pkg/providers/landingdata"
	"github.com/fes-tools/landrecon/pkg/reconcile"
	"github.com/fes-tools/landrecon/pkg/refdata"
	"github.com/fes-tools/landrecon/pkg/reprocess"
	"github.com/fes-tools/landrecon/pkg/storage"
	"github.com/spf13/viper"
)

// app holds the components built from the current configuration.
type app struct {
	db       *storage.DB
	cache    *refdata.Cache
	loader   *refdata.Loader
	pipeline *landings.Pipeline
	queue    *reprocess.Queue
	engine   *reconcile.Engine
}

func (a *app) Close() {
	if a.db != nil {
		a.db.Close()
	}
}

func openDB() (*storage.DB, error) {
	path := viper.GetString("db.path")
	if path == "" {
		path = "landrecon.sqlite"
	}
	db, err := storage.Open(path)
	if err != nil {
		return nil, fmt.Errorf("error opening database %s: %w", path, err)
	}
	return db, nil
}

func blobStore() (*blob.Store, error) {
	return blob.New(blob.Config{
		Endpoint:  viper.GetString("blob.endpoint"),
		AccessKey: viper.GetString("blob.access_key"),
		SecretKey: viper.GetString("blob.secret_key"),
		Bucket:    viper.GetString("blob.bucket"),
		Secure:    viper.GetBool("blob.ssl"),
	})
}

// newLoader builds the reference loader. In dev mode datasets come from
// refdata.dir, otherwise from the object store.
func newLoader(cache *refdata.Cache) (*refdata.Loader, error) {
	l := &refdata.Loader{
		Cache: cache,
		Placeholder: refdata.Placeholder{
			Enabled: viper.GetBool("placeholder.enabled"),
			Name:    viper.GetString("placeholder.name"),
			PLN:     viper.GetString("placeholder.pln"),
		},
		Log: utils.Log.WithField("component", "refdata"),
	}
	if viper.GetBool("dev") {
		l.Source = refdata.LocalSource{Dir: viper.GetString("refdata.dir")}
		return l, nil
	}
	store, err := blobStore()
	if err != nil {
		return nil, err
	}
	l.Source = refdata.BlobSource{Store: store}
	return l, nil
}

func newQueue(db *storage.DB) *reprocess.Queue {
	return &reprocess.Queue{
		Path:    viper.GetString("reprocess.file"),
		Enabled: viper.GetBool("reprocess.enabled"),
		Limit:   viper.GetInt("reprocess.limit"),
		Store:   db,
		Log:     utils.Log.WithField("component", "reprocess"),
	}
}

func auditSink(db *storage.DB) (landings.AuditSink, error) {
	switch sink := viper.GetString("audit.sink"); sink {
	case "", "db":
		return db, nil
	case "blob":
		return blobStore()
	case "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown audit.sink %q (use db, blob or none)", sink)
	}
}

// newApp opens the database and wires every component. The reference data
// is not loaded; callers decide when to do that.
func newApp() (*app, error) {
	db, err := openDB()
	if err != nil {
		return nil, err
	}
	a := &app{db: db, cache: refdata.NewCache(utils.Log.WithField("component", "cache"))}

	if a.loader, err = newLoader(a.cache); err != nil {
		a.Close()
		return nil, err
	}
	audit, err := auditSink(db)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.pipeline = &landings.Pipeline{
		Vessels:       a.cache,
		LandingData:   landingdata.New(viper.GetString("landingdata.url"), viper.GetString("landingdata.token")),
		CatchActivity: catchactivity.New(viper.GetString("catchactivity.url"), viper.GetString("catchactivity.token")),
		Store:         db,
		Log:           utils.Log.WithField("component", "pipeline"),
	}
	// A typed nil would bypass the pipeline's optional-sink check.
	if audit != nil {
		a.pipeline.Audit = audit
	}
	a.queue = newQueue(db)

	cfg := reconcile.Config{
		Store:               db,
		Resolver:            &landings.Resolver{Vessels: a.cache, Log: utils.Log.WithField("component", "resolver")},
		Pipeline:            a.pipeline,
		Reference:           a.loader,
		Reprocess:           a.queue,
		ResubmissionEnabled: viper.GetBool("resubmission.enabled"),
		Log:                 utils.Log.WithField("component", "reconcile"),
	}
	if u := viper.GetString("consolidation.url"); u != "" {
		cfg.Consolidation = consolidation.New(u)
	}
	if u := viper.GetString("trade.url"); u != "" {
		cfg.Trade = consolidation.NewTrade(u)
	}
	a.engine = reconcile.New(cfg)
	return a, nil
}
