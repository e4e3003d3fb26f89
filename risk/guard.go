package risk

// Check 是单项风控检查，返回 nil 表示放行。
type Check func() error

// All 顺序执行多个检查，只要有一个返回错误则中止。
func All(checks ...Check) error {
	for _, c := range checks {
		if c == nil {
			continue
		}
		if err := c(); err != nil {
			return err
		}
	}
	return nil
}
