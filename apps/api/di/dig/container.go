package dig_container

import (
	"context"
	"fmt"
	"log"
	"os"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/troopconnect/troopconnect/apps/api/echo"
	"github.com/troopconnect/troopconnect/core"
	"github.com/troopconnect/troopconnect/core/account"
	"github.com/troopconnect/troopconnect/core/member"
	emailsvc "github.com/troopconnect/troopconnect/services/email"
	logsvc "github.com/troopconnect/troopconnect/services/logger"
	"github.com/troopconnect/troopconnect/storage/database"
	sqlxrepos "github.com/troopconnect/troopconnect/storage/database/sqlx"
)

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

func newLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug)
	return logger
}

func newDBLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug)
	return logger
}

func newDB(conf *core.Config, loggerParam DBLoggerParam) *sqlx.DB {
	setUp := func() (*sqlx.DB, error) {
		if err := database.CreateIfNotExist(conf); err != nil {
			return nil, err
		}

		db, err := database.Open(conf)
		if err != nil {
			return nil, err
		}

		if err = database.Migrate(context.Background(), db, "up"); err != nil {
			_ = db.Close()
			return nil, err
		}
		return db, nil
	}

	db, err := setUp()
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	return db
}

func newTransactor(db *sqlx.DB) core.Transactor {
	return core.NewSQLTransactor(db)
}

func newEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.Debug {
		return emailsvc.NewConsoleService(conf, logger)
	}
	return emailsvc.NewSendgridService(conf, logger)
}

func newNotifier(mailSvc core.EmailService) member.Notifier {
	return emailsvc.NewNotifier(mailSvc)
}

func newValidator() (*validator.Validate, ut.Translator) {
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	account.InitValidators(validate, translator)
	return validate, translator
}

func newAccounts(svc account.Service) member.Accounts {
	return svc
}

func newServer(
	conf *core.Config,
	logger core.Logger,
	validate *validator.Validate,
	translator ut.Translator,
	memberSvc member.Service,
	accountSvc account.Service,
) *echoapi.Server {
	return echoapi.NewServer(echoapi.ServerDeps{
		Conf:       conf,
		Logger:     logger,
		Validate:   validate,
		Translator: translator,
		MemberSvc:  memberSvc,
		AccountSvc: accountSvc,
	})
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newDB))
	must(c.Provide(newTransactor))
	must(c.Provide(newEmailService))
	must(c.Provide(newNotifier))
	must(c.Provide(newValidator))
	must(c.Provide(sqlxrepos.NewMemberRepository, dig.As(new(member.Repository))))
	must(c.Provide(sqlxrepos.NewAccountRepository, dig.As(new(account.Repository))))
	must(c.Provide(account.NewService))
	must(c.Provide(newAccounts))
	must(c.Provide(member.NewOptions))
	must(c.Provide(member.NewService))
	must(c.Provide(newServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
