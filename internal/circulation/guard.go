package circulation

// AvailableStock 可借库存 = 总库存 - 在借数（逾期仍计为在借）
func AvailableStock(totalStock, activeByBook int) int {
	if avail := totalStock - activeByBook; avail > 0 {
		return avail
	}
	return 0
}

// CheckoutCounts 借出前在锁内重新读取的计数
type CheckoutCounts struct {
	TotalStock     int
	ActiveByBook   int
	ActiveByPerson int
}

// CheckCheckout 库存与个人上限校验
// 必须使用持锁后读取的计数，事务外的读取结果不能作为依据
func CheckCheckout(role string, c CheckoutCounts, p Policy) error {
	if AvailableStock(c.TotalStock, c.ActiveByBook) <= 0 {
		return ErrOutOfStock
	}
	ceiling, err := p.MaxConcurrent(role)
	if err != nil {
		return err
	}
	if c.ActiveByPerson >= ceiling {
		return ErrCeilingReached
	}
	return nil
}
