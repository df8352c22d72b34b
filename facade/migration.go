package facade

import (
	"github.com/AlexsanderHamir/entitypool/entity"
	"github.com/AlexsanderHamir/entitypool/migration"
)

func (f *Facade) SwitchToSimplified() bool {
	return f.manager.SwitchToSimplified()
}

func (f *Facade) SwitchToOriginal() bool {
	return f.manager.SwitchToOriginal()
}

func (f *Facade) Toggle() bool {
	return f.manager.Toggle()
}

func (f *Facade) CurrentImplementation() migration.ImplementationType {
	return f.manager.CurrentImplementation()
}

func (f *Facade) EnableABTesting(ratio float64) bool {
	return f.manager.EnableABTesting(ratio)
}

func (f *Facade) DisableABTesting() {
	f.manager.DisableABTesting()
}

func (f *Facade) ValidateImplementationConsistency(t entity.TypeKey, samples int) bool {
	return f.manager.ValidateImplementationConsistency(t, samples)
}

func (f *Facade) ConfigurationSummary() string {
	return f.manager.ConfigurationSummary()
}

func (f *Facade) MigrationReport() string {
	return f.manager.MigrationReport()
}
