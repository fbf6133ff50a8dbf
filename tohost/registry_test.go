package tohost

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type orderListener struct {
	name  string
	order *[]string
	err   error
}

func (l *orderListener) DeviceArrived(d *Device) error {
	*l.order = append(*l.order, l.name+" arrived "+d.Name)

	return l.err
}

func (l *orderListener) DeviceDeparted(d *Device) error {
	*l.order = append(*l.order, l.name+" departed "+d.Name)

	return l.err
}

func TestMemoryRegistryLookup(t *testing.T) {
	r := NewMemoryRegistry(testLogger())

	d := testDevice("eth0", 2, testSrcMAC)
	d.Alias = "uplink"

	require.NoError(t, r.Add(d))

	for _, nameOrAddr := range []string{"eth0", "uplink", testSrcMAC.String()} {
		found, err := r.Lookup(nameOrAddr)
		require.NoError(t, err)
		require.Same(t, d, found)
	}

	_, err := r.Lookup("eth1")
	require.ErrorIs(t, err, ErrBind)
}

func TestMemoryRegistryNotifiesInSubscriptionOrder(t *testing.T) {
	r := NewMemoryRegistry(testLogger())

	var order []string

	unsubscribeFirst := r.Subscribe(&orderListener{name: "first", order: &order})
	r.Subscribe(&orderListener{name: "second", order: &order})

	require.NoError(t, r.Add(testDevice("eth0", 2, nil)))
	require.NoError(t, r.Remove("eth0"))

	require.Equal(t, []string{
		"first arrived eth0",
		"second arrived eth0",
		"first departed eth0",
		"second departed eth0",
	}, order)

	unsubscribeFirst()
	unsubscribeFirst()

	order = nil

	require.NoError(t, r.Add(testDevice("eth1", 3, nil)))
	require.Equal(t, []string{"second arrived eth1"}, order)
}

func TestMemoryRegistryRemoveUnknown(t *testing.T) {
	r := NewMemoryRegistry(testLogger())

	var order []string

	r.Subscribe(&orderListener{name: "l", order: &order})

	require.NoError(t, r.Remove("nope"))
	require.Empty(t, order)
}

func TestMemoryRegistryJoinsListenerErrors(t *testing.T) {
	r := NewMemoryRegistry(testLogger())

	errOne := errors.New("one")
	errTwo := errors.New("two")

	var order []string

	r.Subscribe(&orderListener{name: "first", order: &order, err: errOne})
	r.Subscribe(&orderListener{name: "second", order: &order, err: errTwo})

	err := r.Add(testDevice("eth0", 2, nil))
	require.ErrorIs(t, err, errOne)
	require.ErrorIs(t, err, errTwo)
	require.Len(t, order, 2)
}

func TestMemoryRegistryDevices(t *testing.T) {
	r := NewMemoryRegistry(testLogger())

	require.NoError(t, r.Add(testDevice("eth1", 3, nil)))
	require.NoError(t, r.Add(testDevice("eth0", 2, nil)))

	devices := r.Devices()
	require.Len(t, devices, 2)
	require.Equal(t, "eth0", devices[0].Name)
	require.Equal(t, "eth1", devices[1].Name)
}

func TestMemoryRegistryRename(t *testing.T) {
	r := NewMemoryRegistry(testLogger())

	var order []string

	r.Subscribe(&orderListener{name: "l", order: &order})

	require.NoError(t, r.Add(testDevice("eth0", 2, nil)))
	require.NoError(t, r.Add(testDevice("wan0", 2, nil)))

	require.Equal(t, []string{"l arrived eth0", "l departed eth0", "l arrived wan0"}, order)

	_, err := r.Lookup("eth0")
	require.ErrorIs(t, err, ErrBind)

	devices := r.Devices()
	require.Len(t, devices, 1)
	require.Equal(t, "wan0", devices[0].Name)
}
