package execution

import (
	"github.com/betbot/oddsbot/internal/ports"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

var log = logrus.WithField("module", "execution")

// Gateway 执行网关：每次调用都返回一个 ExecutionResult，失败不抛错、不重试。
type Gateway = ports.OrderSubmitter

// SharesFor 把报价货币金额换算为份额；价格非正时返回 0。
func SharesFor(amount, price decimal.Decimal) decimal.Decimal {
	if !price.IsPositive() || !amount.IsPositive() {
		return decimal.Zero
	}
	return amount.Div(price)
}
